// Package app wires the camera, hand detector, classifier and confirmer into
// the desktop detection pipeline.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/confirm"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/dispatch"
	"github.com/ayusman/mudra/internal/history"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/store"
)

// Pipeline timing.
const (
	IdleFPS     = 5
	ActiveFPS   = 15
	IdleTimeout = 2 * time.Second
)

// Config holds the application settings.
type Config struct {
	Store           *store.Store
	PluginDir       string
	PluginTimeout   time.Duration
	Camera          capture.CameraConfig
	MotionThreshold float64
	Detector        detector.Config
	Classifier      classifier.Options
	Confirm         confirm.Config
	Logger          *slog.Logger
}

// App owns the detection pipeline. All confirmer calls go through frameMu
// because the confirmer itself is single-owner.
type App struct {
	config Config
	logger *slog.Logger

	camera     capture.Camera
	motion     *capture.MotionDetector
	preview    *capture.Preview
	templates  *classifier.TemplateClassifier
	pluginMgr  *plugin.Manager
	dispatcher *dispatch.Dispatcher

	frameMu    sync.Mutex
	confirmer  *confirm.Confirmer
	classifier classifier.Classifier
	latest     classifier.Sample
	hasLatest  bool

	mu       sync.RWMutex
	detector detector.Detector
	enabled  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New builds an App. The confirmer configuration is validated here; an
// invalid one returns a *confirm.ConfigurationError.
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	confirmer, err := confirm.New(cfg.Confirm, confirm.WithLogger(logger.With("component", "confirm")))
	if err != nil {
		return nil, err
	}

	templates := classifier.NewTemplateClassifier(cfg.Classifier)
	a := &App{
		config:     cfg,
		logger:     logger,
		camera:     capture.NewCamera(cfg.Camera),
		motion:     capture.NewMotionDetector(cfg.MotionThreshold),
		preview:    capture.NewPreview(),
		templates:  templates,
		classifier: templates,
		confirmer:  confirmer,
		pluginMgr:  plugin.NewManager(cfg.PluginDir, logger.With("component", "plugin")),
	}

	if cfg.Store != nil {
		a.dispatcher = dispatch.New(cfg.Store.Actions(), a.pluginMgr,
			plugin.NewExecutor(cfg.PluginTimeout), logger.With("component", "dispatch"))
		a.dispatcher.Attach(confirmer)
		history.NewRecorder(cfg.Store.Confirmations(), logger.With("component", "history")).Attach(confirmer)
	}

	confirmer.OnConfirmed(func(e confirm.Confirmed) {
		logger.Info("sign confirmed", "class", e.Class, "confidence", e.Confidence, "streak", e.StreakLength)
	})
	confirmer.OnReset(func(e confirm.Reset) {
		logger.Info("sign released", "class", e.PreviousClass)
	})

	if mp, err := detector.NewMediaPipeDetector(cfg.Detector); err == nil {
		a.detector = mp
		logger.Info("using MediaPipe hand detection")
	} else {
		logger.Warn("MediaPipe not available, using mock detector", "error", err)
		a.detector = detector.NewMockDetector()
	}

	return a, nil
}

// Confirmer exposes the confirmer for listener registration. Listeners run
// on the frame goroutine with the frame lock held and must not call back
// into the App.
func (a *App) Confirmer() *confirm.Confirmer {
	return a.confirmer
}

// SetEnabled turns detection on or off. Disabling hard-resets the
// confirmer without notifications.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	changed := a.enabled != enabled
	a.enabled = enabled
	a.mu.Unlock()

	if changed && !enabled {
		a.frameMu.Lock()
		a.confirmer.Reset()
		a.hasLatest = false
		a.frameMu.Unlock()
	}
	a.logger.Info("detection toggled", "enabled", enabled)
}

// IsEnabled reports whether detection is on.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// SetDetector replaces the hand detector.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// Detector returns the hand detector.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}

// SetClassifier replaces the frame classifier. The template classifier
// stays the training target.
func (a *App) SetClassifier(c classifier.Classifier) {
	a.frameMu.Lock()
	defer a.frameMu.Unlock()
	a.classifier = c
}

// ProcessHands runs one frame through the classifier and confirmer. No
// hands, or a classifier failure, is a frame without usable signal.
func (a *App) ProcessHands(hands []detector.HandLandmarks) confirm.Progress {
	a.frameMu.Lock()
	defer a.frameMu.Unlock()

	if len(hands) == 0 {
		a.hasLatest = false
		a.confirmer.HandleNoSignal()
		return a.confirmer.Progress()
	}

	features := detector.FeatureVector(hands)
	count := detector.HandCount(hands)
	a.latest = classifier.Sample{Features: features, Hands: count, Timestamp: time.Now().UnixMilli()}
	a.hasLatest = true

	result, err := a.classifier.Classify(features)
	if err != nil {
		a.logger.Warn("classification failed", "error", err)
		a.confirmer.HandleNoSignal()
		return a.confirmer.Progress()
	}

	a.confirmer.Update(result, count)
	return a.confirmer.Progress()
}

// HandleNoSignal reports a frame without usable input.
func (a *App) HandleNoSignal() {
	a.frameMu.Lock()
	defer a.frameMu.Unlock()
	a.hasLatest = false
	a.confirmer.HandleNoSignal()
}

// Progress returns the current streak progress.
func (a *App) Progress() confirm.Progress {
	a.frameMu.Lock()
	defer a.frameMu.Unlock()
	return a.confirmer.Progress()
}

// Snapshot returns the full confirmer state.
func (a *App) Snapshot() confirm.Snapshot {
	a.frameMu.Lock()
	defer a.frameMu.Unlock()
	return a.confirmer.Snapshot()
}

// LatestSample returns the feature vector of the most recent frame that had
// hands in it.
func (a *App) LatestSample() (classifier.Sample, bool) {
	a.frameMu.Lock()
	defer a.frameMu.Unlock()
	return a.latest, a.hasLatest
}

// LoadTemplates loads every trained template from the store.
func (a *App) LoadTemplates() error {
	if a.config.Store == nil {
		return nil
	}

	templates, err := a.config.Store.Templates().List()
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}
	for _, t := range templates {
		a.templates.SetTemplate(classifier.Template{Class: t.ClassName, Vector: t.Vector})
	}

	a.logger.Info("templates loaded", "count", len(templates))
	return nil
}

// TrainClass averages the stored samples of a class into its template and
// saves it.
func (a *App) TrainClass(classID string) error {
	s := a.config.Store
	if s == nil {
		return errors.New("no store configured")
	}

	class, err := s.Classes().GetByID(classID)
	if err != nil {
		return err
	}
	raw, err := s.Samples().RawByClassID(classID)
	if err != nil {
		return fmt.Errorf("failed to load samples: %w", err)
	}
	samples, err := classifier.DecodeSamples(raw)
	if err != nil {
		return err
	}
	tpl, err := classifier.Train(class.Name, samples)
	if err != nil {
		return err
	}
	if err := s.Templates().Save(classID, tpl.Vector); err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}

	a.templates.SetTemplate(tpl)
	a.logger.Info("class trained", "class", class.Name, "samples", len(samples))
	return nil
}

// ForgetClass drops the in-memory template of a deleted class.
func (a *App) ForgetClass(name string) {
	a.templates.RemoveTemplate(name)
}

// DiscoverPlugins rescans the plugin directory.
func (a *App) DiscoverPlugins() error {
	return a.pluginMgr.Discover()
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager {
	return a.pluginMgr
}

// Camera returns the frame source.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// Preview returns the latest-frame buffer served to viewers.
func (a *App) Preview() *capture.Preview {
	return a.preview
}

// Start opens the camera and runs the pipeline until Stop.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}
	if err := a.camera.Open(); err != nil {
		return err
	}
	a.camera.SetFPS(IdleFPS)

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.runPipeline(a.stopCh, a.doneCh)

	a.logger.Info("detection pipeline started")
	return nil
}

// Stop halts the pipeline and closes the camera. The App can be started
// again.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, doneCh := a.stopCh, a.doneCh
	a.stopCh, a.doneCh = nil, nil
	a.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh

	if err := a.camera.Close(); err != nil {
		a.logger.Error("failed to close camera", "error", err)
	}
	a.motion.Reset()
	a.HandleNoSignal()
	a.logger.Info("detection pipeline stopped")
}

// Close stops the pipeline and releases the detector and dispatcher.
func (a *App) Close() {
	a.Stop()
	a.motion.Close()

	if d := a.Detector(); d != nil {
		if err := d.Close(); err != nil {
			a.logger.Error("failed to close detector", "error", err)
		}
	}
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
}
