// Package orchestrator runs one request through the diagram pipeline:
// perception, optional augmentation, routing, code generation and draft
// persistence, recording every step in the run ledger.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/AaronLay10/DiagramEngine/internal/augment"
	"github.com/AaronLay10/DiagramEngine/internal/codegen"
	"github.com/AaronLay10/DiagramEngine/internal/events"
	"github.com/AaronLay10/DiagramEngine/internal/ledger"
	"github.com/AaronLay10/DiagramEngine/internal/model"
	"github.com/AaronLay10/DiagramEngine/internal/perception"
	"github.com/AaronLay10/DiagramEngine/internal/router"
	"github.com/AaronLay10/DiagramEngine/internal/storage"
)

// Step names written to the run ledger.
const (
	StepPerception = "perception"
	StepKG         = "kg_augmentation"
	StepRAG        = "rag_augmentation"
	StepRouter     = "dsl_router"
	StepCodegen    = "codegen"
)

// Artifact preview limits, in runes.
const (
	draftPreviewLimit = 200
	codePreviewLimit  = 100
)

// Deps are the collaborators of an Orchestrator. Ledger and Drafts are
// required; unset stages fall back to the built-in rule-based ones.
type Deps struct {
	Ledger    *ledger.Ledger
	Drafts    storage.DraftStore
	Perceiver perception.Perceiver
	KG        augment.Augmenter
	RAG       augment.Augmenter
	Router    router.Router
	Generator *codegen.Generator
	Logger    *zap.Logger
}

// Orchestrator sequences the pipeline stages.
type Orchestrator struct {
	ledger    *ledger.Ledger
	drafts    storage.DraftStore
	perceiver perception.Perceiver
	kg        augment.Augmenter
	rag       augment.Augmenter
	router    router.Router
	generator *codegen.Generator
	policy    augment.Policy
	mode      Mode
	logger    *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMode selects the pipeline variant.
func WithMode(m Mode) Option {
	return func(o *Orchestrator) { o.mode = m }
}

func New(d Deps, opts ...Option) (*Orchestrator, error) {
	if d.Ledger == nil {
		return nil, errors.New("orchestrator: ledger is required")
	}
	if d.Drafts == nil {
		return nil, errors.New("orchestrator: draft store is required")
	}
	o := &Orchestrator{
		ledger:    d.Ledger,
		drafts:    d.Drafts,
		perceiver: d.Perceiver,
		kg:        d.KG,
		rag:       d.RAG,
		router:    d.Router,
		generator: d.Generator,
		mode:      ModeFull,
		logger:    d.Logger,
	}
	if o.perceiver == nil {
		o.perceiver = perception.RuleBased{}
	}
	if o.kg == nil {
		o.kg = augment.KnowledgeGraph{}
	}
	if o.rag == nil {
		o.rag = augment.RAG{}
	}
	if o.router == nil {
		o.router = router.Keyword{}
	}
	if o.generator == nil {
		o.generator = codegen.New()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.mode == ModeSVGOnly {
		o.router = router.SVGOnly{}
	}
	return o, nil
}

// Mode returns the pipeline variant in use.
func (o *Orchestrator) Mode() Mode { return o.mode }

// Result is returned for a successful run. DraftID is nil when the
// request was preview-only.
type Result struct {
	RunID     string           `json:"run_id"`
	Status    model.RunStatus  `json:"status"`
	Draft     model.DslDraft   `json:"draft"`
	DraftID   *int64           `json:"draft_id"`
	FinalSpec *model.FinalSpec `json:"final_spec"`
}

// RunError carries the id of the failed run. Its message is the stage
// error's message.
type RunError struct {
	RunID string
	Err   error
}

func (e *RunError) Error() string { return e.Err.Error() }

func (e *RunError) Unwrap() error { return e.Err }

// Run executes the pipeline for payload. Invalid options are rejected
// before a run is created. Once the run exists it is driven to success or
// failed even if ctx is cancelled; on failure the ledger gets a trailing
// "error" step and the stage error is returned inside a *RunError.
func (o *Orchestrator) Run(ctx context.Context, payload model.InputPayload) (res *Result, err error) {
	if err := payload.Options.Validate(); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	run, err := o.ledger.CreateRun(ctx)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	log := o.logger.With(zap.String("run_id", run.ID))

	defer func() {
		if p := recover(); p != nil {
			o.fail(ctx, run, fmt.Errorf("panic: %v", p))
			panic(p)
		}
		if err != nil {
			o.fail(ctx, run, err)
			log.Error("run failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
			err = &RunError{RunID: run.ID, Err: err}
			return
		}
		log.Info("run succeeded", zap.Duration("elapsed", time.Since(start)))
	}()

	if err = o.ledger.UpdateStatus(ctx, run, model.RunRunning); err != nil {
		return nil, err
	}
	return o.execute(ctx, run, payload)
}

func (o *Orchestrator) execute(ctx context.Context, run *ledger.Run, payload model.InputPayload) (*Result, error) {
	opts := payload.Options

	// Perception.
	var scene model.SceneSpec
	err := o.stage(ctx, run, StepPerception, perceptionInput{Text: payload.Text, HasImages: payload.HasImages()}, func() (any, error) {
		var err error
		scene, err = o.perceiver.Perceive(ctx, payload.Text, payload.Images)
		return scene, err
	})
	if err != nil {
		return nil, err
	}
	if err := o.ledger.AddArtifact(ctx, run, model.ArtifactSceneSpec, "", "Intent: "+scene.Intent); err != nil {
		return nil, err
	}

	// Augmentation, KG before RAG. Disabled stages are not logged at all.
	spec := model.NewFinalSpec(scene)
	if opts.EnableKG {
		if err := o.augment(ctx, run, StepKG, o.kg, scene, spec); err != nil {
			return nil, err
		}
	}
	if opts.EnableRAG {
		if err := o.augment(ctx, run, StepRAG, o.rag, scene, spec); err != nil {
			return nil, err
		}
	}
	spec.Freeze()
	if err := o.ledger.AddArtifact(ctx, run, model.ArtifactFinalSpec, "", fmt.Sprintf("Filled %d slots", len(spec.Filled))); err != nil {
		return nil, err
	}

	// Routing.
	var dsl model.DslType
	var reason string
	routeIn := routeInput{OutputMode: opts.RoutingMode(), Intent: scene.Intent}
	err = o.stage(ctx, run, StepRouter, routeIn, func() (any, error) {
		dsl, reason = o.router.Route(routeIn.OutputMode, routeIn.Intent)
		return routeOutput{DslType: dsl, Reason: reason}, nil
	})
	if err != nil {
		return nil, err
	}

	// Code generation.
	var draft model.DslDraft
	err = o.stage(ctx, run, StepCodegen, codegenInput{DslType: dsl, Mode: o.generator.Mode(dsl)}, func() (any, error) {
		var err error
		draft, err = o.generator.Generate(ctx, codegen.Request{
			DslType:      dsl,
			Spec:         spec,
			Text:         payload.Text,
			RouterReason: reason,
		})
		if err != nil {
			return nil, err
		}
		return draft, nil
	})
	if err != nil {
		return nil, err
	}
	if err := o.ledger.AddArtifact(ctx, run, model.ArtifactDslDraft, "", model.Preview(draft.Code, draftPreviewLimit)); err != nil {
		return nil, err
	}

	// Persistence.
	var draftID *int64
	if !opts.PreviewOnly() {
		id, err := o.persist(ctx, run, draft)
		if err != nil {
			return nil, err
		}
		draftID = &id
	}

	if err := o.ledger.UpdateStatus(ctx, run, model.RunSuccess); err != nil {
		return nil, err
	}

	return &Result{
		RunID:     run.ID,
		Status:    model.RunSuccess,
		Draft:     draft,
		DraftID:   draftID,
		FinalSpec: spec,
	}, nil
}

// stage logs, starts and ends one step around fn. A stage error is
// recorded on the step and returned.
func (o *Orchestrator) stage(ctx context.Context, run *ledger.Run, name string, input any, fn func() (any, error)) error {
	step, err := o.ledger.LogStep(ctx, run, name, input)
	if err != nil {
		return err
	}
	if err := o.ledger.StartStep(ctx, step); err != nil {
		return err
	}
	out, stageErr := fn()
	if err := o.ledger.EndStep(ctx, step, out, stageErr); err != nil {
		if stageErr != nil {
			o.logger.Error("failed to record step error", zap.String("run_id", run.ID), zap.String("step", name), zap.Error(err))
			return stageErr
		}
		return err
	}
	return stageErr
}

func (o *Orchestrator) augment(ctx context.Context, run *ledger.Run, name string, a augment.Augmenter, scene model.SceneSpec, spec *model.FinalSpec) error {
	return o.stage(ctx, run, name, nil, func() (any, error) {
		res, err := a.Augment(ctx, scene)
		if err != nil {
			return nil, err
		}
		if _, err := o.policy.Apply(spec, augment.ProposalFrom(a, res)); err != nil {
			return nil, err
		}
		return augmentOutput{Filled: res.Filled, CitationsCount: len(res.Citations)}, nil
	})
}

func (o *Orchestrator) persist(ctx context.Context, run *ledger.Run, draft model.DslDraft) (int64, error) {
	d := &model.Draft{
		DslType: draft.DslType,
		Code:    draft.Code,
		Meta:    draft.Meta,
		RunID:   run.ID,
	}
	if err := o.drafts.InsertDraft(ctx, d); err != nil {
		return 0, fmt.Errorf("save draft: %w", err)
	}
	ref := strconv.FormatInt(d.ID, 10)
	if err := o.ledger.AddArtifact(ctx, run, model.ArtifactCode, ref, model.Clip(draft.Code, codePreviewLimit)); err != nil {
		return 0, err
	}
	events.Emit("info", "draft.saved", "", map[string]interface{}{
		"run_id":   run.ID,
		"draft_id": d.ID,
		"dsl_type": string(d.DslType),
	})
	return d.ID, nil
}

// fail records the error step and the failed status. Ledger errors here
// are logged only; the caller keeps the original error.
func (o *Orchestrator) fail(ctx context.Context, run *ledger.Run, runErr error) {
	if err := o.ledger.LogFailure(ctx, run, runErr); err != nil {
		o.logger.Error("failed to log error step", zap.String("run_id", run.ID), zap.Error(err))
	}
	if err := o.ledger.UpdateStatus(ctx, run, model.RunFailed); err != nil {
		o.logger.Error("failed to mark run failed", zap.String("run_id", run.ID), zap.Error(err))
	}
}

type perceptionInput struct {
	Text      string `json:"text"`
	HasImages bool   `json:"has_images"`
}

type augmentOutput struct {
	Filled         map[string]string `json:"filled"`
	CitationsCount int               `json:"citations_count"`
}

type routeInput struct {
	OutputMode model.OutputMode `json:"output_mode"`
	Intent     string           `json:"intent"`
}

type routeOutput struct {
	DslType model.DslType `json:"dsl_type"`
	Reason  string        `json:"reason"`
}

type codegenInput struct {
	DslType model.DslType `json:"dsl_type"`
	Mode    string        `json:"mode"`
}
