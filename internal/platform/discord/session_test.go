package discord

import (
	"errors"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/ticket-bot/internal/platform"
)

func restError(status int) error {
	return &discordgo.RESTError{Response: &http.Response{StatusCode: status}}
}

func TestLookupResult(t *testing.T) {
	if ok, err := lookupResult("c1", nil); !ok || err != nil {
		t.Fatalf("found = %v, %v; want true, nil", ok, err)
	}
	if ok, err := lookupResult("c1", restError(http.StatusNotFound)); ok || err != nil {
		t.Fatalf("404 = %v, %v; want false, nil", ok, err)
	}

	ok, err := lookupResult("c1", restError(http.StatusBadGateway))
	if ok || err == nil {
		t.Fatalf("502 = %v, %v; want an error", ok, err)
	}
	if errors.Is(err, platform.ErrNotFound) {
		t.Fatalf("502 must not read as not found")
	}
	if _, err := lookupResult("c1", errors.New("dial tcp: i/o timeout")); err == nil {
		t.Fatalf("network failure should be returned")
	}
}
