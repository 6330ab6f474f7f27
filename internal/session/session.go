// Package session holds per-call state: buffers, history, counters, and the
// flags that gate turn processing and greeting/barge-in behavior. All
// mutation is expected to happen from a single owner goroutine per session.
package session

import (
	"strings"
	"sync/atomic"
)

// GreetingState tracks the one-way pending -> in_progress -> done transition.
type GreetingState int

const (
	GreetingPending GreetingState = iota
	GreetingInProgress
	GreetingDone
)

// Role identifies a conversation history entry's speaker.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry in the conversation history.
type Turn struct {
	Role Role
	Text string
}

// relevantContextPrefix marks a system entry built from a retrieval block
// rather than the persona, so EnsureSystemMessage knows which entry to
// replace on refresh.
const relevantContextPrefix = "Relevant context:\n"

// Session is one active call's state. Exported fields are read-only to
// callers outside the owner goroutine; mutation goes through the methods
// below so invariants hold.
type Session struct {
	CallID           string
	StreamSID        string
	SampleRate       int
	CustomParameters map[string]string

	InboundAudioBuffer []byte

	ConversationHistory []Turn

	sequenceNumber uint64
	IsActive       bool
	GreetingState  GreetingState
	ProcessingTurn bool
	BargeInPending bool

	// OnTurnAppended, if set, is invoked synchronously whenever AppendTurn
	// adds a history entry, letting the gateway mirror turns to persistent
	// storage incrementally instead of only at call end.
	OnTurnAppended func(index int, role Role, text string)
}

// New creates a Session for callID at sampleRate, with no stream_sid yet.
func New(callID string, sampleRate int) *Session {
	return &Session{
		CallID:        callID,
		SampleRate:    sampleRate,
		IsActive:      true,
		GreetingState: GreetingPending,
	}
}

// SetStreamSID pins the session's stream_sid the first time it is supplied.
// Subsequent calls with a different value are ignored, matching the
// "immutable once set" invariant.
func (s *Session) SetStreamSID(sid string) {
	if sid == "" || s.StreamSID != "" {
		return
	}
	s.StreamSID = sid
}

// HasStreamSID reports whether stream_sid is known yet.
func (s *Session) HasStreamSID() bool {
	return s.StreamSID != ""
}

// AppendInboundAudio appends pcm to the inbound buffer. A no-op once the
// session is no longer active.
func (s *Session) AppendInboundAudio(pcm []byte) {
	if !s.IsActive {
		return
	}
	s.InboundAudioBuffer = append(s.InboundAudioBuffer, pcm...)
}

// InboundBufferThresholdBytes returns the byte count at which a turn should
// trigger: sample_rate * 2 bytes/sample * 2 seconds.
func (s *Session) InboundBufferThresholdBytes() int {
	return s.SampleRate * 2 * 2
}

// SnapshotAndClearInboundBuffer returns the current inbound buffer contents
// and resets the buffer to empty.
func (s *Session) SnapshotAndClearInboundBuffer() []byte {
	snap := s.InboundAudioBuffer
	s.InboundAudioBuffer = nil
	return snap
}

// SnapshotLen reports the inbound buffer's current length without clearing
// it, used by the gateway to decide whether a turn should trigger yet.
func (s *Session) SnapshotLen() int {
	return len(s.InboundAudioBuffer)
}

// NextSequenceNumber allocates and returns the next strictly-increasing
// outbound sequence number, starting at 0.
func (s *Session) NextSequenceNumber() uint64 {
	return atomic.AddUint64(&s.sequenceNumber, 1) - 1
}

// SetBargeIn marks a barge-in request, valid at any point after accept.
func (s *Session) SetBargeIn() {
	s.BargeInPending = true
}

// ClearBargeIn clears the barge-in flag, returning whether it had been set.
func (s *Session) ClearBargeIn() bool {
	was := s.BargeInPending
	s.BargeInPending = false
	return was
}

// AppendTurn appends a user/assistant/system entry to the history.
func (s *Session) AppendTurn(role Role, text string) {
	s.ConversationHistory = append(s.ConversationHistory, Turn{Role: role, Text: text})
	if s.OnTurnAppended != nil {
		s.OnTurnAppended(len(s.ConversationHistory)-1, role, text)
	}
}

// AdvanceGreeting transitions pending -> in_progress. No-op otherwise.
func (s *Session) AdvanceGreeting() bool {
	if s.GreetingState != GreetingPending {
		return false
	}
	s.GreetingState = GreetingInProgress
	return true
}

// CompleteGreeting transitions in_progress -> done.
func (s *Session) CompleteGreeting() {
	if s.GreetingState == GreetingInProgress {
		s.GreetingState = GreetingDone
	}
}

// RevertGreeting transitions in_progress -> pending, used when a greeting
// synthesis attempt fails before any audio was sent.
func (s *Session) RevertGreeting() {
	if s.GreetingState == GreetingInProgress {
		s.GreetingState = GreetingPending
	}
}

// Terminate marks the session inactive; callers are responsible for removing
// it from the registry and cancelling in-flight work.
func (s *Session) Terminate() {
	s.IsActive = false
}

// RecentHistory returns the last n non-system turns, oldest first.
func (s *Session) RecentHistory(n int) []Turn {
	var nonSystem []Turn
	for _, t := range s.ConversationHistory {
		if t.Role != RoleSystem {
			nonSystem = append(nonSystem, t)
		}
	}
	if len(nonSystem) > n {
		nonSystem = nonSystem[len(nonSystem)-n:]
	}
	return nonSystem
}

// PersonaTemplateParams are the named slots of the system-prompt template.
// Empty fields drop their optional clause.
type PersonaTemplateParams struct {
	PersonaName  string
	PersonaAge   string
	Tone         string
	Gender       string
	City         string
	Language     string
	Documents    string
	CustomerName string
}

// BuildSystemPrompt renders the persona template from custom_parameters per
// the fixed slot layout: identity line, language instruction, an optional
// documents-only clause, an optional customer-name clause.
func BuildSystemPrompt(p PersonaTemplateParams) string {
	var b strings.Builder
	b.WriteString("You are ")
	b.WriteString(p.PersonaName)
	b.WriteString(", ")
	b.WriteString(p.PersonaAge)
	b.WriteString(" years old, a ")
	b.WriteString(p.Tone)
	b.WriteString(" ")
	b.WriteString(p.Gender)
	b.WriteString(" from ")
	b.WriteString(p.City)
	b.WriteString(".\n\n")
	b.WriteString(languageInstruction(p.Language))

	if p.Documents != "" {
		b.WriteString("\n\nSirf in documents se jawab do:\n")
		b.WriteString(p.Documents)
		b.WriteString("\n")
	}
	if p.CustomerName != "" {
		b.WriteString("\n\nCustomer ka naam: ")
		b.WriteString(p.CustomerName)
		b.WriteString("\n")
	}
	return b.String()
}

func languageInstruction(language string) string {
	lower := strings.ToLower(strings.TrimSpace(language))
	if lower == "hindi" || lower == "hi" {
		return "Baat karo Hinglish mein (mix of Hindi and English)."
	}
	if lower == "" {
		return "Speak in English."
	}
	return "Speak in " + language + "."
}

// IsRelevantContextSystemEntry reports whether a system history entry was
// built from a retrieval block rather than the persona.
func IsRelevantContextSystemEntry(text string) bool {
	return strings.HasPrefix(text, relevantContextPrefix)
}

// UpsertRelevantContext replaces this turn's "Relevant context:" system
// entry (inserting it right after the persona entry if none exists yet), or
// removes it when text is empty (no chunks matched this turn's query).
func (s *Session) UpsertRelevantContext(text string) {
	for i, t := range s.ConversationHistory {
		if t.Role == RoleSystem && IsRelevantContextSystemEntry(t.Text) {
			if text == "" {
				s.ConversationHistory = append(s.ConversationHistory[:i], s.ConversationHistory[i+1:]...)
				return
			}
			s.ConversationHistory[i].Text = text
			return
		}
	}
	if text == "" {
		return
	}

	insertAt := 0
	for i, t := range s.ConversationHistory {
		if t.Role == RoleSystem && !IsRelevantContextSystemEntry(t.Text) {
			insertAt = i + 1
			break
		}
	}
	entry := Turn{Role: RoleSystem, Text: text}
	s.ConversationHistory = append(s.ConversationHistory[:insertAt:insertAt],
		append([]Turn{entry}, s.ConversationHistory[insertAt:]...)...)
}

// EnsureSystemMessage installs or refreshes the persona system entry: if
// custom_parameters is non-empty it is rendered from the template, otherwise
// personaContent (already fetched by the caller) is used verbatim. If
// history is empty the entry is inserted as the first turn; otherwise the
// existing non-relevant-context system entry is replaced in place.
func (s *Session) EnsureSystemMessage(personaContent string) {
	var text string
	if len(s.CustomParameters) > 0 {
		text = BuildSystemPrompt(PersonaTemplateParams{
			PersonaName:  s.CustomParameters["persona_name"],
			PersonaAge:   s.CustomParameters["persona_age"],
			Tone:         s.CustomParameters["tone"],
			Gender:       s.CustomParameters["gender"],
			City:         s.CustomParameters["city"],
			Language:     s.CustomParameters["language"],
			Documents:    s.CustomParameters["documents"],
			CustomerName: s.CustomParameters["customer_name"],
		})
	} else {
		text = personaContent
	}

	for i, t := range s.ConversationHistory {
		if t.Role == RoleSystem && !IsRelevantContextSystemEntry(t.Text) {
			s.ConversationHistory[i].Text = text
			return
		}
	}
	s.ConversationHistory = append([]Turn{{Role: RoleSystem, Text: text}}, s.ConversationHistory...)
}
