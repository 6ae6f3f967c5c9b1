package core

import (
	"bytes"
	"testing"
)

func TestSession_SelectionRequiresCachedStore(t *testing.T) {
	s := NewSession("s1")
	if s.Select("fileSearchStores/ghost") {
		t.Error("selecting an uncached store should fail")
	}
	s.SetStores([]Store{{ID: "fileSearchStores/a", DisplayName: "A"}})
	if !s.Select("fileSearchStores/a") {
		t.Fatal("selecting a cached store should succeed")
	}
	if st, ok := s.Selected(); !ok || st.ID != "fileSearchStores/a" {
		t.Errorf("Selected() = %+v, %v", st, ok)
	}
}

func TestSession_RefreshClearsVanishedSelection(t *testing.T) {
	s := NewSession("s1")
	s.SetStores([]Store{{ID: "fileSearchStores/a"}, {ID: "fileSearchStores/b"}})
	s.Select("fileSearchStores/a")

	// Wholesale replacement without the selected store drops the selection.
	s.SetStores([]Store{{ID: "fileSearchStores/b"}})
	if _, ok := s.Selected(); ok {
		t.Error("selection should be cleared when the store vanishes from a refresh")
	}

	// Replacement that still contains it keeps the selection.
	s.SetStores([]Store{{ID: "fileSearchStores/b"}})
	s.Select("fileSearchStores/b")
	s.SetStores([]Store{{ID: "fileSearchStores/b"}, {ID: "fileSearchStores/c"}})
	if _, ok := s.Selected(); !ok {
		t.Error("selection should survive a refresh that retains the store")
	}
}

func TestSession_RemoveStoreClearsSelection(t *testing.T) {
	s := NewSession("s1")
	s.SetStores([]Store{{ID: "fileSearchStores/a"}})
	s.Select("fileSearchStores/a")
	if !s.RemoveStore("fileSearchStores/a") {
		t.Fatal("expected store to be removed")
	}
	if _, ok := s.Selected(); ok {
		t.Error("removing the selected store should clear the selection")
	}
	if s.RemoveStore("fileSearchStores/a") {
		t.Error("removing twice should report false")
	}
}

func TestSession_TranscriptAppendOnlyAndCopied(t *testing.T) {
	s := NewSession("s1")
	s.AppendMessage(NewUserMessage("q1"))
	s.AppendMessage(NewAssistantMessage("a1", []Citation{{Title: "doc"}}))

	got := s.Transcript()
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	got[0].Text = "mutated"
	if s.Transcript()[0].Text != "q1" {
		t.Error("transcript should be copied on read")
	}

	s.ResetTranscript()
	if len(s.Transcript()) != 0 {
		t.Error("reset should clear the transcript")
	}
}

func TestSession_TaskAdvance(t *testing.T) {
	s := NewSession("s1")
	task := UploadTask{ID: "t1", Status: UploadPending}
	s.EnqueueTask(task)

	st, ok := s.AdvanceTask("t1", UploadProcessing)
	if !ok || st != UploadProcessing {
		t.Fatalf("AdvanceTask = %v, %v", st, ok)
	}
	st, _ = s.AdvanceTask("t1", UploadActive)
	if st != UploadActive {
		t.Fatalf("expected ACTIVE, got %v", st)
	}
	// Terminal stickiness.
	st, _ = s.AdvanceTask("t1", UploadFailed)
	if st != UploadActive {
		t.Errorf("terminal status must be sticky, got %v", st)
	}
	if _, ok := s.AdvanceTask("ghost", UploadActive); ok {
		t.Error("advancing an unknown task should report false")
	}

	snap, _ := s.Task("t1")
	snap.Status = UploadFailed
	if got, _ := s.Task("t1"); got.Status != UploadActive {
		t.Error("task snapshots must not alias internal state")
	}
}

func TestSession_AskGuard(t *testing.T) {
	s := NewSession("s1")
	if !s.BeginAsk() {
		t.Fatal("first BeginAsk should succeed")
	}
	if s.BeginAsk() {
		t.Error("second BeginAsk should fail while in flight")
	}
	s.EndAsk()
	if !s.BeginAsk() {
		t.Error("BeginAsk should succeed after EndAsk")
	}
}

func TestSession_TeardownZeroesCredential(t *testing.T) {
	s := NewSession("s1")
	secret := []byte("AIza-secret")
	s.SetCredential(secret)
	s.SetStores([]Store{{ID: "fileSearchStores/a"}})
	s.Select("fileSearchStores/a")
	s.AppendMessage(NewUserMessage("q"))
	s.EnqueueTask(UploadTask{ID: "t1"})

	held := s.Credential()
	if !bytes.Equal(held, secret) {
		t.Fatal("credential should round-trip before teardown")
	}
	// The session keeps its own copy.
	secret[0] = 'X'
	if bytes.Equal(s.Credential(), secret) {
		t.Error("session must copy the credential on set")
	}

	s.Teardown()
	if len(s.Credential()) != 0 {
		t.Error("credential should be dropped on teardown")
	}
	if len(s.Stores()) != 0 || len(s.Transcript()) != 0 || len(s.Tasks()) != 0 {
		t.Error("teardown should clear all session state")
	}
	if _, ok := s.Selected(); ok {
		t.Error("teardown should clear the selection")
	}
}

func TestSession_TeardownReleasesAskGuard(t *testing.T) {
	s := NewSession("s1")
	if !s.BeginAsk() {
		t.Fatal("first BeginAsk should succeed")
	}
	s.Teardown()
	if !s.BeginAsk() {
		t.Error("teardown should release the in-flight guard")
	}
}
