package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/smartdoc-labs/smartdoc/pkg/notify"
	"github.com/smartdoc-labs/smartdoc/pkg/pipeline"
	"github.com/smartdoc-labs/smartdoc/pkg/store"
)

// EmergencyState is threaded through one emergency pipeline run.
type EmergencyState struct {
	Request Request

	Severity      Severity
	EmergencyType EmergencyType
	ActionsTaken  []string
	Notified      []notify.DeliveryResult
	Guidance      string
	Response      string
	Err           string
}

// Keyword tables for the severity pre-assessment. The completion
// service refines the guess; an invalid or failed refinement keeps it.
var (
	criticalKeywords = []string{
		"douleur poitrine", "mal poitrine", "coeur",
		"respirer", "souffle", "respiration",
		"tombé", "chute", "tombe",
		"saigne", "sang",
		"inconscient", "évanoui",
		"paralysie", "bras engourdi", "jambe engourdie",
		"confusion", "tête qui tourne",
		"crise", "convulsion",
	}

	highKeywords = []string{
		"aide", "urgent", "mal", "douleur forte",
		"peur", "angoisse", "aide-moi",
	}

	fallKeywords      = []string{"tombé", "chute", "tombe"}
	painKeywords      = []string{"poitrine", "coeur", "douleur"}
	breathingKeywords = []string{"respirer", "souffle"}
)

const assessSystemPrompt = `Tu es un médecin urgentiste expert.

Analyse ce message d'une personne âgée et évalue la gravité:

- critical: Danger vital immédiat (appeler 15 IMMÉDIATEMENT)
- high: Situation préoccupante (contacter famille et médecin)
- medium: Inconfort significatif (surveiller, consulter si persiste)
- low: Inquiétude mineure

Réponds UNIQUEMENT avec un mot: critical, high, medium ou low`

// EmergencyAgent assesses an emergency, alerts contacts, logs the
// event, and composes step-by-step guidance.
type EmergencyAgent struct {
	deps     Deps
	pipeline *pipeline.Pipeline[EmergencyState]
}

// Compile-time interface check.
var _ Handler = (*EmergencyAgent)(nil)

// NewEmergencyAgent builds the linear emergency pipeline:
//
//	assess → notify → log → guidance → compose → END
func NewEmergencyAgent(deps Deps) (*EmergencyAgent, error) {
	a := &EmergencyAgent{deps: deps.normalize()}

	p, err := pipeline.New[EmergencyState]().
		AddStage("assess", a.assessSeverity).
		AddStage("notify", a.notifyContacts).
		AddStage("log", a.logEmergency).
		AddStage("guidance", a.provideGuidance).
		AddStage("compose", a.composeResponse).
		AddEdge("assess", "notify").
		AddEdge("notify", "log").
		AddEdge("log", "guidance").
		AddEdge("guidance", "compose").
		AddEdge("compose", pipeline.END).
		SetEntry("assess").
		OnFault(func(s EmergencyState, stageID string, err error) EmergencyState {
			s.Err = firstErr(s.Err, fmt.Sprintf("%s: %v", stageID, err))
			return s
		}).
		Compile()
	if err != nil {
		return nil, fmt.Errorf("compile emergency pipeline: %w", err)
	}

	a.pipeline = p
	return a, nil
}

// Handle implements Handler.
func (a *EmergencyAgent) Handle(ctx context.Context, req Request) Response {
	state := EmergencyState{
		Request:  req,
		Severity: SeverityMedium,
	}

	pctx := pipeline.NewContext(ctx, pipeline.WithLogger(a.deps.Logger))
	final, err := a.pipeline.Run(pctx, state, a.deps.RunOptions...)
	if err != nil {
		final.Err = firstErr(final.Err, err.Error())
	}

	if final.Response == "" {
		final.Response = emergencyFallbackGuidance(final.Severity)
	}

	return Response{
		Response:         final.Response,
		Success:          true,
		Error:            final.Err,
		Severity:         string(final.Severity),
		EmergencyType:    string(final.EmergencyType),
		ContactsNotified: final.Notified,
		ActionsTaken:     final.ActionsTaken,
	}
}

// assessSeverity detects the emergency type by keyword, guesses a
// severity, then asks the completion service to confirm. The keyword
// guess wins when the refinement fails or is not a valid label.
func (a *EmergencyAgent) assessSeverity(ctx pipeline.Context, s EmergencyState) (EmergencyState, error) {
	message := strings.ToLower(s.Request.Message)

	switch {
	case containsAny(message, fallKeywords):
		s.EmergencyType = EmergencyFall
	case containsAny(message, painKeywords):
		s.EmergencyType = EmergencyPain
	case containsAny(message, breathingKeywords):
		s.EmergencyType = EmergencyBreathing
	default:
		s.EmergencyType = EmergencyOther
	}

	guess := SeverityMedium
	if containsAny(message, criticalKeywords) {
		guess = SeverityCritical
	} else if containsAny(message, highKeywords) {
		guess = SeverityHigh
	}
	s.Severity = guess

	raw, err := a.deps.LLM.Complete(ctx, assessSystemPrompt, "Message: "+s.Request.Message)
	if err != nil {
		s.Err = firstErr(s.Err, fmt.Sprintf("assess: %v", err))
		return s, nil
	}

	if severity, ok := ParseSeverity(raw); ok {
		s.Severity = severity
	}

	ctx.Logger().Info("severity assessed",
		"severity", string(s.Severity),
		"emergency_type", string(s.EmergencyType))
	return s, nil
}

// notifyContacts sends the alert SMS batch for critical and high
// severities. Per-contact failures are recorded, never fatal.
func (a *EmergencyAgent) notifyContacts(ctx pipeline.Context, s EmergencyState) (EmergencyState, error) {
	contacts := s.Request.Context.Profile.EmergencyContacts
	if len(contacts) == 0 {
		s.ActionsTaken = append(s.ActionsTaken, "⚠️ Aucun contact d'urgence configuré")
		return s, nil
	}

	if s.Severity != SeverityCritical && s.Severity != SeverityHigh {
		s.ActionsTaken = append(s.ActionsTaken, "ℹ️ Gravité faible, contacts non alertés")
		return s, nil
	}

	s.Notified = notify.SendEmergencyBatch(ctx, a.deps.Notifier, contacts,
		displayName(s.Request.Context.Profile), s.Request.Message,
		string(s.Severity), a.deps.Clock.Now())

	for _, result := range s.Notified {
		if result.Success {
			s.ActionsTaken = append(s.ActionsTaken, "✅ SMS envoyé à "+result.Contact)
		} else {
			s.ActionsTaken = append(s.ActionsTaken, "❌ Échec SMS à "+result.Contact)
		}
	}

	ctx.Logger().Info("contacts notified", "count", len(s.Notified))
	return s, nil
}

// logEmergency persists the event record. Best-effort.
func (a *EmergencyAgent) logEmergency(ctx pipeline.Context, s EmergencyState) (EmergencyState, error) {
	notified := make([]string, 0, len(s.Notified))
	for _, r := range s.Notified {
		notified = append(notified, r.Contact)
	}

	emg := store.Emergency{
		EmergencyID:      store.NewID("emg"),
		UserID:           s.Request.UserID,
		Timestamp:        a.deps.Clock.Now().UTC(),
		Severity:         string(s.Severity),
		EmergencyType:    string(s.EmergencyType),
		Message:          s.Request.Message,
		ActionsTaken:     s.ActionsTaken,
		ContactsNotified: notified,
		Resolved:         false,
	}

	if err := a.deps.Store.SaveEmergency(ctx, emg); err != nil {
		s.Err = firstErr(s.Err, fmt.Sprintf("log: %v", err))
		ctx.Logger().Warn("emergency save failed", "error", err)
		return s, nil
	}

	s.ActionsTaken = append(s.ActionsTaken, "📝 Urgence enregistrée dans le système")
	return s, nil
}

// provideGuidance generates numbered first-response instructions.
// A failed generation falls back to a fixed severity-tiered block.
func (a *EmergencyAgent) provideGuidance(ctx pipeline.Context, s EmergencyState) (EmergencyState, error) {
	var situation string
	switch s.EmergencyType {
	case EmergencyFall:
		situation = `Personne âgée qui est tombée.
Instructions:
1. Ne pas se lever trop vite
2. Vérifier s'il y a des douleurs
3. Demander de l'aide pour se relever
4. S'asseoir et se reposer`
	case EmergencyBreathing:
		situation = `Problème respiratoire.
Instructions:
1. S'asseoir bien droit
2. Essayer de respirer calmement
3. Ouvrir une fenêtre
4. Ne pas paniquer`
	case EmergencyPain:
		situation = `Douleur signalée.
Instructions:
1. S'asseoir ou s'allonger
2. Noter où ça fait mal
3. Rester calme
4. Appeler de l'aide si douleur intense`
	default:
		situation = "Situation d'urgence générale."
	}

	systemPrompt := fmt.Sprintf(`Tu es un assistant d'urgence médicale parlant à %s, une personne âgée.

Situation: %s
Type d'urgence: %s
Gravité: %s

%s

Fournis des conseils IMMÉDIATS et CLAIRS:
- Instructions numérotées très simples
- Phrases courtes et directes
- Ton rassurant mais sérieux
- Maximum 4-5 instructions

Si gravité CRITICAL: rappeler d'appeler le 15 en PREMIER
Si gravité HIGH: recommander d'appeler médecin rapidement
Si gravité MEDIUM/LOW: rassurer et donner conseils pratiques

IMPORTANT: Reste calme et rassurant dans ton ton.`,
		displayName(s.Request.Context.Profile), s.Request.Message,
		s.EmergencyType, s.Severity, situation)

	text, err := a.deps.LLM.Complete(ctx, systemPrompt, s.Request.Message)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			s.Err = firstErr(s.Err, fmt.Sprintf("guidance: %v", err))
		}
		s.Guidance = emergencyFallbackGuidance(s.Severity)
		return s, nil
	}

	s.Guidance = text
	return s, nil
}

// composeResponse assembles the final message: severity header,
// guidance block, actions taken, and a closing line.
func (a *EmergencyAgent) composeResponse(ctx pipeline.Context, s EmergencyState) (EmergencyState, error) {
	name := displayName(s.Request.Context.Profile)

	var header string
	switch s.Severity {
	case SeverityCritical:
		header = fmt.Sprintf("🚨 %s, C'EST UNE URGENCE!", strings.ToUpper(name))
	case SeverityHigh:
		header = fmt.Sprintf("⚠️ %s, situation urgente", name)
	default:
		header = fmt.Sprintf("💙 %s, je suis là pour vous", name)
	}

	parts := []string{
		header,
		"",
		"📋 CE QUE VOUS DEVEZ FAIRE:",
		s.Guidance,
		"",
	}

	if len(s.ActionsTaken) > 0 {
		parts = append(parts, "✅ ACTIONS EFFECTUÉES:")
		for _, action := range s.ActionsTaken {
			parts = append(parts, "  "+action)
		}
		parts = append(parts, "")
	}

	switch s.Severity {
	case SeverityCritical:
		parts = append(parts, "🚑 LES SECOURS SONT EN ROUTE", "💙 Vous n'êtes pas seul(e)")
	case SeverityHigh:
		parts = append(parts, "👥 Vos proches sont prévenus", "💙 De l'aide arrive")
	default:
		parts = append(parts, "💙 N'hésitez pas à me reparler", "📞 Je suis toujours disponible")
	}

	s.Response = strings.Join(parts, "\n")
	return s, nil
}

// emergencyFallbackGuidance is the fixed instruction block used when
// guidance generation is unavailable.
func emergencyFallbackGuidance(severity Severity) string {
	switch severity {
	case SeverityCritical:
		return `🚨 URGENCE VITALE

1. Appelez le 15 (SAMU) IMMÉDIATEMENT
2. Ne restez pas seul(e)
3. Restez calme et suivez les instructions du SAMU
4. Vos proches sont prévenus`
	case SeverityHigh:
		return `⚠️ SITUATION URGENTE

1. Appelez votre médecin maintenant
2. Si aggravation, appelez le 15
3. Restez au téléphone avec moi
4. Vos proches sont prévenus`
	default:
		return `💙 JE SUIS LÀ POUR VOUS

1. Restez calme
2. Asseyez-vous confortablement
3. Respirez calmement
4. Je surveille votre situation`
	}
}
