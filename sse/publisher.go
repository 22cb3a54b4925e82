// Copyright (c) 2025 The Livetally Authors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package sse

import (
	"github.com/livetally/livetally/models"
)

// Event names pushed to poll topics.
const (
	EventVoteUpdate    = "vote-update"
	EventOptionsUpdate = "options-update"
	EventPollUpdate    = "poll-update"
)

type voteUpdate struct {
	Options []models.Option `json:"options"`
	Stats   models.Stats    `json:"stats"`
}

type optionsUpdate struct {
	Options []models.Option `json:"options"`
}

type pollUpdate struct {
	Question string `json:"question"`
}

// PollPublisher adapts the broker to the engine's publish step. The engine
// calls it after each committed transaction.
type PollPublisher struct {
	broker *Broker
}

func NewPollPublisher(broker *Broker) *PollPublisher {
	return &PollPublisher{broker: broker}
}

func (p *PollPublisher) ResultsChanged(pollID string, options []models.Option, stats models.Stats) {
	payload := marshal(voteUpdate{Options: options, Stats: stats})
	if payload == nil {
		return
	}
	p.broker.Notifier <- Event{Topic: pollID, Name: EventVoteUpdate, Payload: payload}
}

func (p *PollPublisher) OptionsChanged(pollID string, options []models.Option) {
	payload := marshal(optionsUpdate{Options: options})
	if payload == nil {
		return
	}
	p.broker.Notifier <- Event{Topic: pollID, Name: EventOptionsUpdate, Payload: payload}
}

func (p *PollPublisher) QuestionChanged(pollID, question string) {
	payload := marshal(pollUpdate{Question: question})
	if payload == nil {
		return
	}
	p.broker.Notifier <- Event{Topic: pollID, Name: EventPollUpdate, Payload: payload}
}
