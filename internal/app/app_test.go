package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/confirm"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/store"
)

func testConfirmConfig() confirm.Config {
	return confirm.Config{
		RequiredStreak: 3,
		MinConfidence:  0.8,
		CooldownFrames: 2,
		Classes: []confirm.ClassSpec{
			{Name: "gojo", RequiredFeatureCount: 1},
			{Name: "ryomen", RequiredFeatureCount: 2},
			{Name: "unknown", RequiredFeatureCount: 0},
		},
		ReservedClass: "unknown",
	}
}

type events struct {
	confirmed []confirm.Confirmed
	resets    []confirm.Reset
}

func newTestApp(t *testing.T, s *store.Store) (*App, *events) {
	t.Helper()

	a, err := New(Config{
		Store:      s,
		PluginDir:  t.TempDir(),
		Camera:     capture.DefaultCameraConfig(),
		Classifier: classifier.DefaultOptions(),
		Confirm:    testConfirmConfig(),
		Logger:     slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(a.Close)

	ev := &events{}
	a.Confirmer().OnConfirmed(func(e confirm.Confirmed) { ev.confirmed = append(ev.confirmed, e) })
	a.Confirmer().OnReset(func(e confirm.Reset) { ev.resets = append(ev.resets, e) })
	return a, ev
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func oneHand() []detector.HandLandmarks {
	return []detector.HandLandmarks{detector.OpenHand(detector.Right, 0.5)}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfirmConfig()
	cfg.RequiredStreak = 0

	_, err := New(Config{Confirm: cfg})
	if !errors.Is(err, confirm.ErrInvalidConfig) {
		t.Fatalf("New() error = %v, want ErrInvalidConfig", err)
	}
}

func TestApp_ProcessHands_Confirms(t *testing.T) {
	a, ev := newTestApp(t, nil)
	a.SetClassifier(classifier.NewMock(confirm.Classification{Class: "gojo", Confidence: 0.9}))

	var p confirm.Progress
	for i := 0; i < 3; i++ {
		p = a.ProcessHands(oneHand())
	}

	if len(ev.confirmed) != 1 || ev.confirmed[0].Class != "gojo" || ev.confirmed[0].StreakLength != 3 {
		t.Fatalf("confirmed = %+v", ev.confirmed)
	}
	if !p.IsConfirmed || p.Ratio != 1 {
		t.Errorf("progress = %+v", p)
	}

	a.ProcessHands(nil)
	if len(ev.resets) != 1 || ev.resets[0].PreviousClass != "gojo" {
		t.Errorf("resets = %+v", ev.resets)
	}
	if a.Progress().StreakLength != 0 {
		t.Error("no-hand frame should clear the streak")
	}
}

func TestApp_ProcessHands_HandCountGates(t *testing.T) {
	a, ev := newTestApp(t, nil)
	// ryomen needs two hands.
	a.SetClassifier(classifier.NewMock(confirm.Classification{Class: "ryomen", Confidence: 0.95}))

	for i := 0; i < 10; i++ {
		a.ProcessHands(oneHand())
	}
	if len(ev.confirmed) != 0 || a.Progress().StreakLength != 0 {
		t.Errorf("one-hand frames advanced a two-hand class: %+v", a.Snapshot())
	}

	two := []detector.HandLandmarks{detector.OpenHand(detector.Left, 0.3), detector.OpenHand(detector.Right, 0.7)}
	for i := 0; i < 3; i++ {
		a.ProcessHands(two)
	}
	if len(ev.confirmed) != 1 {
		t.Errorf("two-hand frames did not confirm: %+v", a.Snapshot())
	}
}

func TestApp_ProcessHands_ClassifierErrorIsNoSignal(t *testing.T) {
	a, ev := newTestApp(t, nil)
	mock := classifier.NewMock(confirm.Classification{Class: "gojo", Confidence: 0.9})
	a.SetClassifier(mock)

	for i := 0; i < 3; i++ {
		a.ProcessHands(oneHand())
	}
	mock.SetError(errors.New("model unavailable"))
	a.ProcessHands(oneHand())

	if len(ev.resets) != 1 {
		t.Errorf("classifier failure did not release the sign: %+v", ev.resets)
	}
}

func TestApp_SetEnabledFalseResetsSilently(t *testing.T) {
	a, ev := newTestApp(t, nil)
	a.SetClassifier(classifier.NewMock(confirm.Classification{Class: "gojo", Confidence: 0.9}))
	a.SetEnabled(true)

	for i := 0; i < 3; i++ {
		a.ProcessHands(oneHand())
	}
	a.SetEnabled(false)

	if len(ev.resets) != 0 {
		t.Errorf("disable emitted resets: %+v", ev.resets)
	}
	if snap := a.Snapshot(); snap != (confirm.Snapshot{}) {
		t.Errorf("snapshot after disable = %+v, want zero", snap)
	}
	if a.IsEnabled() {
		t.Error("IsEnabled() = true after disable")
	}
}

func TestApp_LatestSample(t *testing.T) {
	a, _ := newTestApp(t, nil)

	if _, ok := a.LatestSample(); ok {
		t.Error("expected no sample before any frame")
	}

	a.ProcessHands(oneHand())
	s, ok := a.LatestSample()
	if !ok || s.Hands != 1 || len(s.Features) != detector.FeatureDims {
		t.Errorf("LatestSample() = %d hands, %d features, %v", s.Hands, len(s.Features), ok)
	}

	a.ProcessHands(nil)
	if _, ok := a.LatestSample(); ok {
		t.Error("no-hand frame should clear the latest sample")
	}
}

func TestApp_TrainAndLoadTemplates(t *testing.T) {
	s := newTestStore(t)
	if err := s.Classes().SeedDefaults(confirm.DefaultClasses(), confirm.DefaultReservedClass); err != nil {
		t.Fatalf("SeedDefaults() error = %v", err)
	}
	gojo, err := s.Classes().GetByName("gojo")
	if err != nil {
		t.Fatalf("GetByName() error = %v", err)
	}

	sample, err := json.Marshal(classifier.Sample{Features: detector.FeatureVector(oneHand()), Hands: 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Samples().Replace(gojo.ID, []json.RawMessage{sample, sample}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	a, ev := newTestApp(t, s)
	if err := a.TrainClass(gojo.ID); err != nil {
		t.Fatalf("TrainClass() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		a.ProcessHands(oneHand())
	}
	if len(ev.confirmed) != 1 || ev.confirmed[0].Class != "gojo" {
		t.Fatalf("trained template did not confirm: %+v", a.Snapshot())
	}

	// A fresh app picks the saved template up from the store.
	b, ev2 := newTestApp(t, s)
	if err := b.LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		b.ProcessHands(oneHand())
	}
	if len(ev2.confirmed) != 1 {
		t.Errorf("loaded template did not confirm: %+v", b.Snapshot())
	}

	rows, err := s.Confirmations().Recent(10)
	if err != nil || len(rows) != 2 {
		t.Errorf("history rows = %d, %v; want 2", len(rows), err)
	}

	if err := a.TrainClass("missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("TrainClass(missing) = %v, want ErrNotFound", err)
	}
}

func TestApp_Step_IdleActive(t *testing.T) {
	a, ev := newTestApp(t, nil)
	a.SetClassifier(classifier.NewMock(confirm.Classification{Class: "gojo", Confidence: 0.9}))
	mock := detector.NewMockDetector()
	mock.SetHands(oneHand())
	a.SetDetector(mock)

	black := capture.SolidFrame(160, 120, 0)
	defer black.Close()
	white := capture.SolidFrame(160, 120, 255)
	defer white.Close()

	state := pipelineState{}
	start := time.Now()

	if _, changed := a.step(&state, &black, start); changed || state.active {
		t.Fatal("first frame should only prime motion detection")
	}
	if mock.Calls() != 0 {
		t.Error("detector ran in idle mode")
	}

	fps, changed := a.step(&state, &white, start.Add(100*time.Millisecond))
	if !changed || fps != ActiveFPS || !state.active {
		t.Fatalf("motion did not activate: fps=%d changed=%v", fps, changed)
	}
	a.step(&state, &white, start.Add(200*time.Millisecond))
	a.step(&state, &white, start.Add(300*time.Millisecond))
	if len(ev.confirmed) != 1 {
		t.Fatalf("active frames did not confirm: %+v", a.Snapshot())
	}

	fps, changed = a.step(&state, &white, start.Add(300*time.Millisecond+IdleTimeout+time.Millisecond))
	if !changed || fps != IdleFPS || state.active {
		t.Fatalf("idle timeout did not deactivate: fps=%d changed=%v", fps, changed)
	}
	if len(ev.resets) != 1 {
		t.Errorf("going idle did not release the sign: %+v", ev.resets)
	}

	if _, _, err := a.Preview().Latest(); err != nil {
		t.Errorf("frames were not published to the preview: %v", err)
	}
}

func TestApp_Step_DetectorErrorIsNoSignal(t *testing.T) {
	a, ev := newTestApp(t, nil)
	a.SetClassifier(classifier.NewMock(confirm.Classification{Class: "gojo", Confidence: 0.9}))
	mock := detector.NewMockDetector()
	mock.SetHands(oneHand())
	a.SetDetector(mock)

	for i := 0; i < 3; i++ {
		a.ProcessHands(oneHand())
	}

	black := capture.SolidFrame(160, 120, 0)
	defer black.Close()
	white := capture.SolidFrame(160, 120, 255)
	defer white.Close()

	mock.SetError(errors.New("service crashed"))
	state := pipelineState{}
	now := time.Now()
	a.step(&state, &black, now)
	a.step(&state, &white, now)

	if len(ev.resets) != 1 {
		t.Errorf("detector failure did not release the sign: %+v", ev.resets)
	}
}
