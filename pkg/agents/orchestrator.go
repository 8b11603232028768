package agents

import (
	"context"
	"fmt"

	"github.com/smartdoc-labs/smartdoc/pkg/pipeline"
	"github.com/smartdoc-labs/smartdoc/pkg/store"
)

// OrchestratorState is threaded through one orchestrator run.
// UserID and Message are set once at creation and never modified;
// Context is read-only after load_context.
type OrchestratorState struct {
	UserID  string
	Message string

	Intent   Intent
	Context  UserContext
	Route    string
	Response string
	Err      string
}

// Result is the orchestrator's output contract to the caller.
type Result struct {
	Response     string `json:"response"`
	Intent       Intent `json:"intent"`
	PipelineUsed string `json:"pipeline_used"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
}

// routeTable is the fixed intent-to-pipeline mapping. Appointment
// questions are handled by the symptom pipeline, which also reads the
// loaded appointment context.
var routeTable = map[Intent]string{
	IntentMedication:  PipelineMedication,
	IntentSymptom:     PipelineSymptom,
	IntentAppointment: PipelineSymptom,
	IntentEmergency:   PipelineEmergency,
	IntentGeneral:     PipelineNone,
}

const classifySystemPrompt = `Tu es un classificateur d'intention expert pour un assistant médical senior.

Analyse le message et retourne UNE SEULE catégorie parmi:

- medication: Questions sur médicaments, posologie, rappels, interactions
  Exemples: "Quels sont mes médicaments?", "Quand prendre mon Doliprane?", "C'est quoi mon traitement?"

- symptom: Symptômes de santé, douleurs, malaises, questions médicales
  Exemples: "J'ai mal à la tête", "Je ne me sens pas bien", "J'ai de la fièvre"

- appointment: Rendez-vous médicaux, calendrier, docteurs
  Exemples: "Quand est mon RDV?", "Rendez-vous chez le cardiologue", "Mon prochain docteur"

- emergency: Urgence, chute, douleur intense, appel à l'aide, danger
  Exemples: "Aide!", "Je suis tombé", "Douleur poitrine", "Urgence", "Au secours"

- general: Conversation générale, salutations, questions diverses
  Exemples: "Bonjour", "Comment ça va?", "Merci", "Qui es-tu?"

IMPORTANT: Réponds UNIQUEMENT avec le mot-clé de la catégorie, rien d'autre.

Si le message contient "urgence", "aide", "tombé", "douleur intense" → toujours répondre "emergency"`

const (
	fallbackInvokeError   = "Désolé, une erreur est survenue. Pouvez-vous reformuler votre question?"
	fallbackInvokeFailure = "Désolé, je rencontre une difficulté technique. Veuillez réessayer."
	fallbackEmptyResponse = "Désolé, je n'ai pas pu traiter votre demande."
	fallbackGeneral       = "Bonjour! Comment puis-je vous aider aujourd'hui?"
)

// Orchestrator classifies a message, enriches it with stored context,
// dispatches it to a specialized pipeline, and persists the outcome.
type Orchestrator struct {
	deps     Deps
	invoker  Invoker
	pipeline *pipeline.Pipeline[OrchestratorState]
}

// NewOrchestrator builds the orchestrator pipeline:
//
//	classify → load_context → route ─┬→ invoke ────→ persist → END
//	                                 └→ answer_general ─┘
func NewOrchestrator(deps Deps, invoker Invoker) (*Orchestrator, error) {
	o := &Orchestrator{deps: deps.normalize(), invoker: invoker}

	p, err := pipeline.New[OrchestratorState]().
		AddStage("classify", o.classifyIntent).
		AddStage("load_context", o.loadContext).
		AddStage("route", o.selectRoute).
		AddStage("invoke", o.invokeSpecialized).
		AddStage("answer_general", o.answerGeneral).
		AddStage("persist", o.persistTranscript).
		AddEdge("classify", "load_context").
		AddEdge("load_context", "route").
		AddBranch("route", pipeline.Branch[OrchestratorState]{
			Key: func(s OrchestratorState) string { return s.Route },
			Targets: map[string]string{
				PipelineMedication: "invoke",
				PipelineSymptom:    "invoke",
				PipelineEmergency:  "invoke",
				PipelineNone:       "answer_general",
			},
			Default: "answer_general",
		}).
		AddEdge("invoke", "persist").
		AddEdge("answer_general", "persist").
		AddEdge("persist", pipeline.END).
		SetEntry("classify").
		OnFault(func(s OrchestratorState, stageID string, err error) OrchestratorState {
			s.Err = firstErr(s.Err, fmt.Sprintf("%s: %v", stageID, err))
			return s
		}).
		Compile()
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator pipeline: %w", err)
	}

	o.pipeline = p
	return o, nil
}

// Handle runs the orchestrator for one user message.
// The returned Result always carries a non-empty response.
func (o *Orchestrator) Handle(ctx context.Context, userID, message string) Result {
	state := OrchestratorState{
		UserID:  userID,
		Message: message,
		Route:   PipelineNone,
	}

	pctx := pipeline.NewContext(ctx, pipeline.WithLogger(o.deps.Logger))
	final, err := o.pipeline.Run(pctx, state, o.deps.RunOptions...)
	if err != nil {
		// Only cancellation or the iteration guard can land here; the
		// fault handler absorbs stage failures.
		final.Err = firstErr(final.Err, err.Error())
	}

	if final.Response == "" {
		final.Response = fallbackEmptyResponse
	}

	return Result{
		Response:     final.Response,
		Intent:       final.Intent,
		PipelineUsed: final.Route,
		Success:      true,
		Error:        final.Err,
	}
}

// classifyIntent asks the completion service for one of the five intent
// categories. Invalid or failed output defaults to general.
func (o *Orchestrator) classifyIntent(ctx pipeline.Context, s OrchestratorState) (OrchestratorState, error) {
	raw, err := o.deps.LLM.Complete(ctx, classifySystemPrompt, "Message à classifier: "+s.Message)
	if err != nil {
		s.Intent = IntentGeneral
		s.Err = firstErr(s.Err, fmt.Sprintf("classify: %v", err))
		return s, nil
	}

	intent, ok := ParseIntent(raw)
	if !ok {
		s.Intent = IntentGeneral
		s.Err = firstErr(s.Err, fmt.Sprintf("classify: unrecognized intent %q", raw))
		return s, nil
	}

	s.Intent = intent
	ctx.Logger().Info("intent classified", "intent", string(intent))
	return s, nil
}

// loadContext fetches the user profile, active medications, and up to 5
// upcoming appointments. A missing profile becomes a minimal
// placeholder; store failures degrade to empty context.
func (o *Orchestrator) loadContext(ctx pipeline.Context, s OrchestratorState) (OrchestratorState, error) {
	profile, err := o.deps.Store.User(ctx, s.UserID)
	if err != nil {
		if err != store.ErrNotFound {
			s.Err = firstErr(s.Err, fmt.Sprintf("load_context: %v", err))
		}
		profile = store.UserProfile{UserID: s.UserID, Name: "Utilisateur"}
	}
	s.Context.Profile = profile

	meds, err := o.deps.Store.Medications(ctx, s.UserID, true)
	if err != nil {
		s.Err = firstErr(s.Err, fmt.Sprintf("load_context: %v", err))
	} else {
		s.Context.Medications = meds
	}

	appts, err := o.deps.Store.Appointments(ctx, s.UserID, 5)
	if err != nil {
		s.Err = firstErr(s.Err, fmt.Sprintf("load_context: %v", err))
	} else {
		s.Context.Appointments = appts
	}

	ctx.Logger().Info("context loaded",
		"medications", len(s.Context.Medications),
		"appointments", len(s.Context.Appointments))
	return s, nil
}

// selectRoute maps the classified intent to a target pipeline.
func (o *Orchestrator) selectRoute(ctx pipeline.Context, s OrchestratorState) (OrchestratorState, error) {
	route, ok := routeTable[s.Intent]
	if !ok {
		route = PipelineNone
	}
	s.Route = route
	ctx.Logger().Info("route selected", "route", route)
	return s, nil
}

// invokeSpecialized calls the target pipeline and copies its response.
// Invocation failures degrade to an apologetic fallback.
func (o *Orchestrator) invokeSpecialized(ctx pipeline.Context, s OrchestratorState) (OrchestratorState, error) {
	resp, err := o.invoker.Invoke(ctx, s.Route, Request{
		UserID:  s.UserID,
		Message: s.Message,
		Context: s.Context,
	})
	if err != nil {
		s.Response = fallbackInvokeFailure
		s.Err = firstErr(s.Err, fmt.Sprintf("invoke %s: %v", s.Route, err))
		return s, nil
	}

	if !resp.Success {
		s.Response = fallbackInvokeError
		s.Err = firstErr(s.Err, fmt.Sprintf("invoke %s: %s", s.Route, resp.Error))
		return s, nil
	}

	s.Response = resp.Response
	if s.Response == "" {
		s.Response = fallbackEmptyResponse
	}
	return s, nil
}

// answerGeneral replies directly for general conversation.
func (o *Orchestrator) answerGeneral(ctx pipeline.Context, s OrchestratorState) (OrchestratorState, error) {
	systemPrompt := fmt.Sprintf(`Tu es un assistant médical bienveillant pour %s, une personne âgée.

Réponds de manière:
- Chaleureuse et rassurante
- Simple et claire (phrases courtes)
- Empathique et patiente
- En français

Si c'est une salutation, salue chaleureusement.
Si c'est un remerciement, réponds poliment.
Si c'est une question générale, réponds simplement.

Reste toujours positif et encourageant.`, displayName(s.Context.Profile))

	text, err := o.deps.LLM.Complete(ctx, systemPrompt, s.Message)
	if err != nil {
		s.Response = fallbackGeneral
		s.Err = firstErr(s.Err, fmt.Sprintf("answer_general: %v", err))
		return s, nil
	}

	s.Response = text
	if s.Response == "" {
		s.Response = fallbackGeneral
	}
	return s, nil
}

// persistTranscript saves the conversation record. Best-effort: a
// failure is recorded, never surfaced to the caller.
func (o *Orchestrator) persistTranscript(ctx pipeline.Context, s OrchestratorState) (OrchestratorState, error) {
	conv := store.Conversation{
		ConversationID:    store.NewID("conv"),
		UserID:            s.UserID,
		Timestamp:         o.deps.Clock.Now().UTC(),
		UserMessage:       s.Message,
		AssistantResponse: s.Response,
		Intent:            string(s.Intent),
		PipelineUsed:      s.Route,
	}

	if err := o.deps.Store.SaveConversation(ctx, conv); err != nil {
		s.Err = firstErr(s.Err, fmt.Sprintf("persist: %v", err))
		ctx.Logger().Warn("conversation save failed", "error", err)
	}
	return s, nil
}
