// Package outbound triggers carrier-initiated outbound calls via the
// Twilio REST API, handing the call off to the same media-stream WS
// gateway once the carrier connects.
package outbound

import (
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Config is the set of values required to place an outbound call. Every
// field is mandatory; a missing one is a configuration error, not a
// transient one, so callers should fail fast rather than retry.
type Config struct {
	AccountSID  string
	AuthToken   string
	FromNumber  string
	TwimlAppURL string
}

// missingKeys reports which required config values are absent.
func (c Config) missingKeys() []string {
	var missing []string
	if c.AccountSID == "" {
		missing = append(missing, "account_sid")
	}
	if c.AuthToken == "" {
		missing = append(missing, "auth_token")
	}
	if c.FromNumber == "" {
		missing = append(missing, "from_number")
	}
	if c.TwimlAppURL == "" {
		missing = append(missing, "twiml_app_url")
	}
	return missing
}

// Trigger places an outbound call to `to` (which must be E.164, i.e. start
// with "+") via Twilio, pointing the call at the configured TwiML
// application that bridges it into the media-stream WS gateway.
type Trigger struct {
	cfg    Config
	client *twilio.RestClient
}

// New validates cfg and constructs a Trigger. Returns an error naming every
// missing config key rather than failing on the first one, since this is a
// configuration error surfaced once at startup, not a retryable condition.
func New(cfg Config) (*Trigger, error) {
	if missing := cfg.missingKeys(); len(missing) > 0 {
		return nil, fmt.Errorf("outbound: missing required config: %s", strings.Join(missing, ", "))
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Trigger{cfg: cfg, client: client}, nil
}

// Result is the outcome of a successful outbound call trigger.
type Result struct {
	Success bool   `json:"success"`
	CallSID string `json:"callSid"`
}

// Call places an outbound call to `to`, from `from` if given or the
// configured default from-number otherwise. Rejects `to` values that don't
// look like E.164 numbers before making any network call.
func (t *Trigger) Call(to, from string) (*Result, error) {
	if !strings.HasPrefix(to, "+") {
		return nil, fmt.Errorf("outbound: %q must be in E.164 format (start with '+')", to)
	}
	if from == "" {
		from = t.cfg.FromNumber
	}

	params := &openapi.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetUrl(t.cfg.TwimlAppURL)

	resp, err := t.client.Api.CreateCall(params)
	if err != nil {
		return nil, fmt.Errorf("outbound: create call: %w", err)
	}

	callSID := ""
	if resp.Sid != nil {
		callSID = *resp.Sid
	}
	return &Result{Success: true, CallSID: callSID}, nil
}
