// Copyright (c) 2025 The Livetally Authors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package engine owns all durable poll, option, and vote state.

# Operations

  - CreatePoll: validated poll + initial option set in one transaction
  - AddOption / RemoveOption / UpdateQuestion: owner-gated mutations;
    removal is a soft delete only
  - CastOrChangeVote: the central transactional vote-replace
  - Snapshot: read-only, idempotent poll view for a viewer
  - RebuildCounts: reconcile cached counters with the ledger

# The vote transaction

CastOrChangeVote runs as one atomic unit: load poll → account
precondition → validate chosen options → detect a prior vote → delegate
eligibility to the identity resolver → delete prior rows and decrement
their counters → insert the new rows and increment → recompute stats →
commit. Only after the commit does the engine publish a vote-update event
through its Publisher, so live viewers never observe state that could
still roll back.

Denials (already voted, rate limited, missing signals) are pure reads and
leave no partial state. Failures mid-transaction roll everything back.

# Counters

option.vote_count is a derived cache of the ledger. It is maintained by
paired increments/decrements inside the vote transaction, clamped at
zero, and can always be rebuilt from the ledger via RebuildCounts.
*/
package engine
