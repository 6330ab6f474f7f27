package session

import "testing"

func TestStreamSIDImmutableOnceSet(t *testing.T) {
	s := New("call-1", 8000)
	s.SetStreamSID("S1")
	s.SetStreamSID("S2")
	if s.StreamSID != "S1" {
		t.Fatalf("stream_sid = %q, want S1 (pinned)", s.StreamSID)
	}
}

func TestSequenceNumberStrictlyMonotonic(t *testing.T) {
	s := New("call-1", 8000)
	for i := range uint64(5) {
		if got := s.NextSequenceNumber(); got != i {
			t.Fatalf("sequence number %d = %d, want %d", i, got, i)
		}
	}
}

func TestInactiveSessionRejectsInboundAudio(t *testing.T) {
	s := New("call-1", 8000)
	s.Terminate()
	s.AppendInboundAudio([]byte{1, 2, 3, 4})
	if len(s.InboundAudioBuffer) != 0 {
		t.Fatal("inactive session accepted inbound audio")
	}
}

func TestGreetingStateTransitionsAreOneWay(t *testing.T) {
	s := New("call-1", 8000)
	if !s.AdvanceGreeting() {
		t.Fatal("expected pending -> in_progress to succeed")
	}
	s.CompleteGreeting()
	if s.GreetingState != GreetingDone {
		t.Fatalf("greeting state = %v, want done", s.GreetingState)
	}
	s.RevertGreeting()
	if s.GreetingState != GreetingDone {
		t.Fatal("done must be absorbing")
	}
	if s.AdvanceGreeting() {
		t.Fatal("advancing from done must fail")
	}
}

func TestEnsureSystemMessageInsertsFirstThenReplaces(t *testing.T) {
	s := New("call-1", 8000)
	s.EnsureSystemMessage("default persona content")
	if len(s.ConversationHistory) != 1 || s.ConversationHistory[0].Role != RoleSystem {
		t.Fatalf("expected single system entry, got %+v", s.ConversationHistory)
	}

	s.AppendTurn(RoleUser, "hi")
	s.AppendTurn(RoleSystem, relevantContextPrefix+"some ctx")
	s.EnsureSystemMessage("updated persona content")

	var systemEntries []Turn
	for _, t := range s.ConversationHistory {
		if t.Role == RoleSystem {
			systemEntries = append(systemEntries, t)
		}
	}
	if len(systemEntries) != 2 {
		t.Fatalf("expected persona + relevant-context entries, got %d", len(systemEntries))
	}
	if systemEntries[0].Text != "updated persona content" {
		t.Fatalf("persona entry not refreshed: %q", systemEntries[0].Text)
	}
}

func TestBuildSystemPromptHindiInstruction(t *testing.T) {
	prompt := BuildSystemPrompt(PersonaTemplateParams{
		PersonaName: "Asha", PersonaAge: "28", Tone: "friendly", Gender: "woman",
		City: "Mumbai", Language: "Hindi",
	})
	if !contains(prompt, "Hinglish") {
		t.Fatalf("expected Hinglish instruction, got %q", prompt)
	}
}

func TestBuildSystemPromptOmitsEmptyClauses(t *testing.T) {
	prompt := BuildSystemPrompt(PersonaTemplateParams{
		PersonaName: "Asha", PersonaAge: "28", Tone: "friendly", Gender: "woman", City: "Mumbai",
	})
	if contains(prompt, "Customer ka naam") || contains(prompt, "Sirf in documents") {
		t.Fatalf("expected optional clauses omitted, got %q", prompt)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
