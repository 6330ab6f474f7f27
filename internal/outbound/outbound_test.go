package outbound

import "testing"

func TestNewRejectsIncompleteConfig(t *testing.T) {
	_, err := New(Config{AccountSID: "AC123"})
	if err == nil {
		t.Fatal("expected an error for an incomplete config")
	}
}

func TestNewAcceptsCompleteConfig(t *testing.T) {
	trigger, err := New(Config{
		AccountSID:  "AC123",
		AuthToken:   "token",
		FromNumber:  "+15550000000",
		TwimlAppURL: "https://example.com/twiml",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if trigger == nil {
		t.Fatal("expected a non-nil trigger")
	}
}

func TestCallRejectsNonE164Number(t *testing.T) {
	trigger, err := New(Config{
		AccountSID:  "AC123",
		AuthToken:   "token",
		FromNumber:  "+15550000000",
		TwimlAppURL: "https://example.com/twiml",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := trigger.Call("5550001111", ""); err == nil {
		t.Fatal("expected an error for a number missing the '+' prefix")
	}
}

func TestCallValidatesToEvenWithExplicitFrom(t *testing.T) {
	trigger, err := New(Config{
		AccountSID:  "AC123",
		AuthToken:   "token",
		FromNumber:  "+15550000000",
		TwimlAppURL: "https://example.com/twiml",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// An explicit "from" does not bypass the E.164 validation on "to"; the
	// call is rejected before any network request is made.
	if _, err := trigger.Call("5550001111", "+15551112222"); err == nil {
		t.Fatal("expected an error for a 'to' number missing the '+' prefix")
	}
}
