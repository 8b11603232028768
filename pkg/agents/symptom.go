package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/smartdoc-labs/smartdoc/pkg/pipeline"
)

// SymptomState is threaded through one symptom pipeline run.
type SymptomState struct {
	Request Request

	Severity        SymptomSeverity
	Symptoms        []string
	Recommendations []string
	Response        string
	Err             string
}

// Keyword fallback tables used when the structured analysis fails.
var (
	symptomCriticalKeywords = []string{"poitrine", "respirer", "confusion", "inconscient", "paralysie"}
	symptomSevereKeywords   = []string{"douleur forte", "vomissement", "fièvre élevée", "saigne"}
	symptomModerateKeywords = []string{"mal", "douleur", "fatigue"}
)

// symptomAnalysis is the structured output expected from the analysis
// prompt.
type symptomAnalysis struct {
	Severity                string   `json:"severity"`
	Symptoms                []string `json:"symptoms"`
	NeedsImmediateAttention bool     `json:"needs_immediate_attention"`
}

// SymptomAgent analyzes reported symptoms, relates them to the user's
// medications and appointments, and produces severity-tiered advice.
type SymptomAgent struct {
	deps     Deps
	pipeline *pipeline.Pipeline[SymptomState]
}

// Compile-time interface check.
var _ Handler = (*SymptomAgent)(nil)

// NewSymptomAgent builds the linear symptom pipeline:
//
//	analyze → check_meds → recommend → check_appts → compose → END
func NewSymptomAgent(deps Deps) (*SymptomAgent, error) {
	a := &SymptomAgent{deps: deps.normalize()}

	p, err := pipeline.New[SymptomState]().
		AddStage("analyze", a.analyzeSymptoms).
		AddStage("check_meds", a.checkSideEffects).
		AddStage("recommend", a.generateRecommendations).
		AddStage("check_appts", a.checkAppointments).
		AddStage("compose", a.composeResponse).
		AddEdge("analyze", "check_meds").
		AddEdge("check_meds", "recommend").
		AddEdge("recommend", "check_appts").
		AddEdge("check_appts", "compose").
		AddEdge("compose", pipeline.END).
		SetEntry("analyze").
		OnFault(func(s SymptomState, stageID string, err error) SymptomState {
			s.Err = firstErr(s.Err, fmt.Sprintf("%s: %v", stageID, err))
			return s
		}).
		Compile()
	if err != nil {
		return nil, fmt.Errorf("compile symptom pipeline: %w", err)
	}

	a.pipeline = p
	return a, nil
}

// Handle implements Handler.
func (a *SymptomAgent) Handle(ctx context.Context, req Request) Response {
	state := SymptomState{
		Request:  req,
		Severity: SymptomMild,
	}

	pctx := pipeline.NewContext(ctx, pipeline.WithLogger(a.deps.Logger))
	final, err := a.pipeline.Run(pctx, state, a.deps.RunOptions...)
	if err != nil {
		final.Err = firstErr(final.Err, err.Error())
	}

	if final.Response == "" {
		final.Response = "Désolé, je n'ai pas pu analyser vos symptômes. Si vous vous sentez mal, consultez un médecin."
	}

	return Response{
		Response:        final.Response,
		Success:         true,
		Error:           final.Err,
		Severity:        string(final.Severity),
		Symptoms:        final.Symptoms,
		Recommendations: final.Recommendations,
	}
}

// analyzeSymptoms asks for a structured severity assessment. A failed
// call or unparseable output falls back to keyword matching with a
// placeholder symptom.
func (a *SymptomAgent) analyzeSymptoms(ctx pipeline.Context, s SymptomState) (SymptomState, error) {
	profile := s.Request.Context.Profile
	conditions := "Aucune"
	if len(profile.MedicalConditions) > 0 {
		conditions = strings.Join(profile.MedicalConditions, ", ")
	}

	systemPrompt := fmt.Sprintf(`Tu es un médecin assistant expert qui évalue les symptômes.

Patient: %s
Conditions médicales connues: %s

Message du patient: %s

Analyse les symptômes et réponds avec un JSON structuré:
{
    "severity": "mild|moderate|severe|critical",
    "symptoms": ["symptôme 1", "symptôme 2"],
    "needs_immediate_attention": true|false
}

Critères de gravité:
- mild: Inconfort léger, pas urgent (ex: petit mal de tête, fatigue)
- moderate: Symptômes gênants mais pas alarmants (ex: mal de tête persistant, nausées)
- severe: Symptômes préoccupants nécessitant consultation rapide (ex: douleur forte, vomissements)
- critical: Urgence médicale immédiate (ex: douleur poitrine, difficulté respirer, confusion)

Réponds UNIQUEMENT avec le JSON, rien d'autre.`,
		displayName(profile), conditions, s.Request.Message)

	raw, err := a.deps.LLM.Complete(ctx, systemPrompt, s.Request.Message)
	if err == nil {
		var analysis symptomAnalysis
		if jsonErr := json.Unmarshal([]byte(strings.TrimSpace(raw)), &analysis); jsonErr == nil {
			if severity, ok := ParseSymptomSeverity(analysis.Severity); ok {
				s.Severity = severity
				s.Symptoms = analysis.Symptoms
				ctx.Logger().Info("symptoms analyzed",
					"severity", string(severity),
					"symptoms", len(s.Symptoms))
				return s, nil
			}
		}
		err = fmt.Errorf("unparseable analysis output")
	}

	s.Err = firstErr(s.Err, fmt.Sprintf("analyze: %v", err))
	s.Severity = keywordSymptomSeverity(s.Request.Message)
	s.Symptoms = []string{"Symptôme mentionné dans le message"}
	ctx.Logger().Warn("symptom analysis degraded to keywords", "severity", string(s.Severity))
	return s, nil
}

// checkSideEffects asks whether the symptoms could be medication side
// effects. Skipped when the user takes nothing; failures are silent.
func (a *SymptomAgent) checkSideEffects(ctx pipeline.Context, s SymptomState) (SymptomState, error) {
	meds := s.Request.Context.Medications
	if len(meds) == 0 {
		return s, nil
	}

	names := make([]string, 0, len(meds))
	for _, med := range meds {
		names = append(names, med.Name)
	}

	systemPrompt := fmt.Sprintf(`Tu es un pharmacien expert.

Médicaments du patient: %s
Symptômes rapportés: %s

Ces symptômes pourraient-ils être des effets secondaires de ces médicaments?

Réponds de manière simple:
- Si possible lien: explique brièvement
- Si peu probable: rassure
- Recommande toujours de consulter médecin/pharmacien

Sois bref et clair (2-3 phrases max).`,
		strings.Join(names, ", "), strings.Join(s.Symptoms, ", "))

	text, err := a.deps.LLM.Complete(ctx, systemPrompt, s.Request.Message)
	if err != nil {
		s.Err = firstErr(s.Err, fmt.Sprintf("check_meds: %v", err))
		return s, nil
	}

	if strings.TrimSpace(text) != "" {
		s.Recommendations = append(s.Recommendations, "ℹ️ Concernant vos médicaments: "+text)
	}
	return s, nil
}

// generateRecommendations appends the fixed severity-tiered advice.
// No external calls; this stage cannot fail.
func (a *SymptomAgent) generateRecommendations(ctx pipeline.Context, s SymptomState) (SymptomState, error) {
	s.Recommendations = append(s.Recommendations, severityRecommendations(s.Severity)...)
	return s, nil
}

// severityRecommendations is the fixed advice list per severity level.
func severityRecommendations(severity SymptomSeverity) []string {
	switch severity {
	case SymptomCritical:
		return []string{
			"🚨 URGENT: Appelez le 15 (SAMU) immédiatement",
			"🚑 Ne restez pas seul(e)",
			"📞 Prévenez vos proches",
		}
	case SymptomSevere:
		return []string{
			"⚠️ Consultez un médecin aujourd'hui",
			"📞 Appelez votre médecin ou allez aux urgences",
			"👥 Informez un proche",
		}
	case SymptomModerate:
		return []string{
			"🏥 Consultez votre médecin dans les 24-48h",
			"📝 Notez l'évolution de vos symptômes",
			"💊 Prenez vos médicaments habituels",
		}
	default:
		return []string{
			"😊 Ces symptômes sont généralement bénins",
			"💧 Reposez-vous et hydratez-vous",
			"📊 Surveillez l'évolution",
			"🏥 Si aggravation, consultez un médecin",
		}
	}
}

// checkAppointments surfaces the soonest upcoming appointment.
func (a *SymptomAgent) checkAppointments(ctx pipeline.Context, s SymptomState) (SymptomState, error) {
	appts := s.Request.Context.Appointments
	if len(appts) == 0 {
		return s, nil
	}

	next := appts[0]
	title := next.Title
	if title == "" {
		title = "Rendez-vous"
	}

	s.Recommendations = append(s.Recommendations, fmt.Sprintf(`
📅 Votre prochain rendez-vous:
   %s
   Le %s à %s`, title, next.Date, next.Time))
	return s, nil
}

// composeResponse assembles the final message: severity header,
// identified symptoms, recommendations, and a closing line.
func (a *SymptomAgent) composeResponse(ctx pipeline.Context, s SymptomState) (SymptomState, error) {
	name := displayName(s.Request.Context.Profile)

	var header string
	switch s.Severity {
	case SymptomCritical:
		header = fmt.Sprintf("⚠️ %s, c'est une situation d'URGENCE!", name)
	case SymptomSevere:
		header = fmt.Sprintf("⚠️ %s, vos symptômes nécessitent une attention médicale.", name)
	case SymptomModerate:
		header = fmt.Sprintf("💭 %s, je comprends votre inquiétude.", name)
	default:
		header = fmt.Sprintf("😊 %s, ne vous inquiétez pas trop.", name)
	}

	parts := []string{header, ""}

	if len(s.Symptoms) > 0 {
		parts = append(parts, "📋 Symptômes identifiés:")
		for _, symptom := range s.Symptoms {
			parts = append(parts, "  • "+symptom)
		}
		parts = append(parts, "")
	}

	parts = append(parts, "💡 Mes recommandations:")
	for _, rec := range s.Recommendations {
		parts = append(parts, "  "+rec)
	}
	parts = append(parts, "")

	if s.Severity == SymptomMild || s.Severity == SymptomModerate {
		parts = append(parts, "💙 N'hésitez pas à me reparler si vos symptômes changent.")
	} else {
		parts = append(parts, "💙 Vous n'êtes pas seul(e). Faites-vous aider.")
	}

	s.Response = strings.Join(parts, "\n")
	return s, nil
}

// keywordSymptomSeverity is the keyword fallback classifier.
func keywordSymptomSeverity(message string) SymptomSeverity {
	lower := strings.ToLower(message)
	switch {
	case containsAny(lower, symptomCriticalKeywords):
		return SymptomCritical
	case containsAny(lower, symptomSevereKeywords):
		return SymptomSevere
	case containsAny(lower, symptomModerateKeywords):
		return SymptomModerate
	default:
		return SymptomMild
	}
}
