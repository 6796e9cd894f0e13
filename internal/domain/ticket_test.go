package domain

import (
	"testing"
	"time"
)

func TestFormatTicketNumber(t *testing.T) {
	cases := map[int]string{1: "0001", 42: "0042", 9999: "9999", 12345: "12345"}
	for id, want := range cases {
		if got := FormatTicketNumber(id); got != want {
			t.Errorf("FormatTicketNumber(%d) = %q, want %q", id, got, want)
		}
	}
}

func TestChannelNameAndTranscriptKey(t *testing.T) {
	if got := ChannelName(7); got != "ticket-0007" {
		t.Errorf("ChannelName(7) = %q, want ticket-0007", got)
	}
	if got := TranscriptKey(7); got != "ticket-7.txt" {
		t.Errorf("TranscriptKey(7) = %q, want ticket-7.txt", got)
	}
	at := time.Date(2024, 3, 1, 13, 4, 5, 0, time.FixedZone("CET", 3600))
	if got := TranscriptKeyAt(7, at, 1); got != "ticket-7-20240301T120405Z.txt" {
		t.Errorf("TranscriptKeyAt(7, 1) = %q", got)
	}
	if got := TranscriptKeyAt(7, at, 3); got != "ticket-7-20240301T120405Z-3.txt" {
		t.Errorf("TranscriptKeyAt(7, 3) = %q", got)
	}
}

func TestActorHasRole(t *testing.T) {
	actor := Actor{ID: "u1", RoleIDs: []string{"r1", "r2"}}
	if !actor.HasRole("r2") {
		t.Error("expected actor to hold r2")
	}
	if actor.HasRole("r3") {
		t.Error("actor should not hold r3")
	}
	if actor.HasRole("") {
		t.Error("empty role id must never match")
	}
}
