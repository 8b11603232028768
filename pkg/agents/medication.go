package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/smartdoc-labs/smartdoc/pkg/pipeline"
	"github.com/smartdoc-labs/smartdoc/pkg/store"
)

// MedicationState is threaded through one medication pipeline run.
type MedicationState struct {
	Request Request

	Action      MedAction
	Medications []store.Medication
	Response    string
	Err         string
}

// Keyword tables for action selection. First match wins, in this order.
var (
	reminderKeywords    = []string{"rappel", "quand", "heure", "prochain", "prendre"}
	interactionKeywords = []string{"interaction", "ensemble", "danger", "mélanger"}
	historyKeywords     = []string{"historique", "pris", "oublié", "hier"}
)

// MedicationAgent answers medication questions: schedules, next dose,
// interactions, and intake history.
type MedicationAgent struct {
	deps     Deps
	pipeline *pipeline.Pipeline[MedicationState]
}

// Compile-time interface check.
var _ Handler = (*MedicationAgent)(nil)

// NewMedicationAgent builds the medication pipeline:
//
//	determine_action → load_meds ─┬→ info ───────→ END
//	                              ├→ reminder ───→ END
//	                              ├→ interaction → END
//	                              └→ history ────→ END
func NewMedicationAgent(deps Deps) (*MedicationAgent, error) {
	a := &MedicationAgent{deps: deps.normalize()}

	p, err := pipeline.New[MedicationState]().
		AddStage("determine_action", a.determineAction).
		AddStage("load_meds", a.loadMedications).
		AddStage("info", a.provideInfo).
		AddStage("reminder", a.checkNextDose).
		AddStage("interaction", a.checkInteractions).
		AddStage("history", a.showHistory).
		AddEdge("determine_action", "load_meds").
		AddBranch("load_meds", pipeline.Branch[MedicationState]{
			Key: func(s MedicationState) string { return string(s.Action) },
			Targets: map[string]string{
				string(ActionInfo):        "info",
				string(ActionReminder):    "reminder",
				string(ActionInteraction): "interaction",
				string(ActionHistory):     "history",
			},
			Default: "info",
		}).
		AddEdge("info", pipeline.END).
		AddEdge("reminder", pipeline.END).
		AddEdge("interaction", pipeline.END).
		AddEdge("history", pipeline.END).
		SetEntry("determine_action").
		OnFault(func(s MedicationState, stageID string, err error) MedicationState {
			s.Err = firstErr(s.Err, fmt.Sprintf("%s: %v", stageID, err))
			return s
		}).
		Compile()
	if err != nil {
		return nil, fmt.Errorf("compile medication pipeline: %w", err)
	}

	a.pipeline = p
	return a, nil
}

// Handle implements Handler.
func (a *MedicationAgent) Handle(ctx context.Context, req Request) Response {
	state := MedicationState{
		Request: req,
		Action:  ActionInfo,
	}

	pctx := pipeline.NewContext(ctx, pipeline.WithLogger(a.deps.Logger))
	final, err := a.pipeline.Run(pctx, state, a.deps.RunOptions...)
	if err != nil {
		final.Err = firstErr(final.Err, err.Error())
	}

	if final.Response == "" {
		final.Response = "Désolé, je n'ai pas pu traiter votre question sur les médicaments. Veuillez réessayer."
	}

	return Response{
		Response: final.Response,
		Success:  true,
		Error:    final.Err,
		Action:   string(final.Action),
	}
}

// determineAction selects a terminal stage by keyword. Info is the
// default when nothing matches.
func (a *MedicationAgent) determineAction(ctx pipeline.Context, s MedicationState) (MedicationState, error) {
	message := strings.ToLower(s.Request.Message)

	switch {
	case containsAny(message, reminderKeywords):
		s.Action = ActionReminder
	case containsAny(message, interactionKeywords):
		s.Action = ActionInteraction
	case containsAny(message, historyKeywords):
		s.Action = ActionHistory
	default:
		s.Action = ActionInfo
	}

	ctx.Logger().Info("medication action determined", "action", string(s.Action))
	return s, nil
}

// loadMedications fetches the user's active medications. A store
// failure degrades to the medications already carried in the request
// context.
func (a *MedicationAgent) loadMedications(ctx pipeline.Context, s MedicationState) (MedicationState, error) {
	meds, err := a.deps.Store.Medications(ctx, s.Request.UserID, true)
	if err != nil {
		s.Err = firstErr(s.Err, fmt.Sprintf("load_meds: %v", err))
		s.Medications = s.Request.Context.Medications
		return s, nil
	}

	s.Medications = meds
	ctx.Logger().Info("medications loaded", "count", len(meds))
	return s, nil
}

// provideInfo answers a free-form medication question.
func (a *MedicationAgent) provideInfo(ctx pipeline.Context, s MedicationState) (MedicationState, error) {
	name := displayName(s.Request.Context.Profile)

	if len(s.Medications) == 0 {
		s.Response = fmt.Sprintf("%s, vous n'avez pas de médicaments enregistrés actuellement. Voulez-vous que je vous aide à en ajouter?", name)
		return s, nil
	}

	var lines []string
	for _, med := range s.Medications {
		lines = append(lines, fmt.Sprintf("- %s: %s, à prendre à %s. %s",
			med.Name, med.Dosage, scheduleTimes(med), med.Instructions))
	}
	medsText := strings.Join(lines, "\n")

	systemPrompt := fmt.Sprintf(`Tu es un assistant médical bienveillant pour %s, une personne âgée.

Médicaments actuels:
%s

Question de l'utilisateur: %s

Réponds à la question sur les médicaments de manière:
- Simple et très claire (phrases courtes)
- Sans jargon médical complexe
- Rassurante et encourageante
- En rappelant de toujours consulter un médecin pour tout doute

Si l'utilisateur demande ses médicaments, liste-les de façon claire avec emojis.
Utilise des emojis appropriés: 💊 pour médicament, ⏰ pour horaire, ℹ️ pour info.`,
		name, medsText, s.Request.Message)

	text, err := a.deps.LLM.Complete(ctx, systemPrompt, s.Request.Message)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			s.Err = firstErr(s.Err, fmt.Sprintf("info: %v", err))
		}
		s.Response = fmt.Sprintf("Voici vos %d médicaments:\n\n%s", len(s.Medications), medsText)
		return s, nil
	}

	s.Response = text
	return s, nil
}

// nextDose is one upcoming scheduled intake.
type nextDose struct {
	Name         string
	Dosage       string
	Time         string
	Instructions string
	MinutesUntil int
}

// checkNextDose computes the soonest scheduled intake from the
// injected clock. Times already past today roll over to tomorrow.
// Runs entirely in-process; no completion call.
func (a *MedicationAgent) checkNextDose(ctx pipeline.Context, s MedicationState) (MedicationState, error) {
	name := displayName(s.Request.Context.Profile)

	if len(s.Medications) == 0 {
		s.Response = fmt.Sprintf("%s, vous n'avez pas de médicaments enregistrés.", name)
		return s, nil
	}

	now := a.deps.Clock.Now()
	doses := upcomingDoses(s.Medications, now)
	if len(doses) == 0 {
		s.Response = fmt.Sprintf("Bravo %s! Vous avez pris tous vos médicaments pour aujourd'hui! 🎉", name)
		return s, nil
	}

	next := doses[0]
	var b strings.Builder
	fmt.Fprintf(&b, `⏰ Votre prochain médicament:

💊 %s
📏 Dose: %s
🕐 Heure: %s
⏱️ %s

%s

Je vous rappellerai quand ce sera l'heure! 😊`,
		next.Name, next.Dosage, next.Time, formatDelay(next.MinutesUntil), next.Instructions)

	if len(doses) > 1 {
		b.WriteString("\n\n📋 Ensuite:\n")
		for _, dose := range doses[1:min(3, len(doses))] {
			fmt.Fprintf(&b, "• %s à %s\n", dose.Name, dose.Time)
		}
	}

	s.Response = b.String()
	ctx.Logger().Info("next dose computed", "medication", next.Name, "minutes_until", next.MinutesUntil)
	return s, nil
}

// checkInteractions asks for a plain-language interaction review.
// Fewer than two medications short-circuits.
func (a *MedicationAgent) checkInteractions(ctx pipeline.Context, s MedicationState) (MedicationState, error) {
	name := displayName(s.Request.Context.Profile)

	if len(s.Medications) < 2 {
		s.Response = fmt.Sprintf("%s, vous avez moins de 2 médicaments. Les interactions ne sont généralement pas un problème.", name)
		return s, nil
	}

	names := make([]string, 0, len(s.Medications))
	for _, med := range s.Medications {
		names = append(names, med.Name)
	}
	medsText := strings.Join(names, ", ")

	systemPrompt := fmt.Sprintf(`Tu es un pharmacien expert mais qui parle simplement.

%s prend actuellement ces médicaments:
%s

Analyse les interactions potentielles entre ces médicaments.

Réponds de manière:
- Très simple et rassurante
- Sans termes techniques
- Si pas d'interaction majeure connue: rassure
- Si interaction possible: explique simplement et recommande de consulter médecin/pharmacien
- Utilise des emojis appropriés`, name, medsText)

	text, err := a.deps.LLM.Complete(ctx, systemPrompt, s.Request.Message)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			s.Err = firstErr(s.Err, fmt.Sprintf("interaction: %v", err))
		}
		s.Response = fmt.Sprintf(`Je ne peux pas analyser les interactions pour le moment.

Vos médicaments: %s

Je vous recommande de consulter votre pharmacien ou médecin pour vérifier qu'il n'y a pas d'interactions.`, medsText)
		return s, nil
	}

	// The consultation reminder is appended here, not left to the model.
	s.Response = text + "\n\n⚕️ Consultez toujours un professionnel de santé pour confirmation."
	return s, nil
}

// showHistory lists the active medications with their start dates.
func (a *MedicationAgent) showHistory(ctx pipeline.Context, s MedicationState) (MedicationState, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 Historique de vos médicaments:\n\nMédicaments actifs actuellement: %d\n", len(s.Medications))

	for _, med := range s.Medications {
		start := med.StartDate
		if start == "" {
			start = "Date inconnue"
		}
		fmt.Fprintf(&b, `
💊 %s
   Dose: %s
   Horaires: %s
   Depuis: %s
`, med.Name, med.Dosage, scheduleTimes(med), start)
	}

	b.WriteString("\nℹ️ Pour un historique détaillé des prises, consultez votre médecin ou pharmacien.")
	s.Response = b.String()
	return s, nil
}

// upcomingDoses expands every schedule into its next occurrence
// relative to now, sorted soonest first. The sort is stable so
// medications at the same time keep their stored order.
func upcomingDoses(meds []store.Medication, now time.Time) []nextDose {
	var doses []nextDose
	for _, med := range meds {
		for _, schedule := range med.Schedules {
			hour, minute, ok := parseClockTime(schedule.Time)
			if !ok {
				continue
			}

			scheduled := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
			if !scheduled.After(now) {
				scheduled = scheduled.Add(24 * time.Hour)
			}

			doses = append(doses, nextDose{
				Name:         med.Name,
				Dosage:       med.Dosage,
				Time:         schedule.Time,
				Instructions: med.Instructions,
				MinutesUntil: int(scheduled.Sub(now).Minutes()),
			})
		}
	}

	sort.SliceStable(doses, func(i, j int) bool {
		return doses[i].MinutesUntil < doses[j].MinutesUntil
	})
	return doses
}

// parseClockTime parses "HH:MM".
func parseClockTime(value string) (hour, minute int, ok bool) {
	if _, err := fmt.Sscanf(value, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, false
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

// formatDelay renders a minute count as "dans X minute(s)",
// "dans XhMM", or "dans X jour(s)".
func formatDelay(minutes int) string {
	hours := minutes / 60
	mins := minutes % 60

	switch {
	case hours > 24:
		days := hours / 24
		if days > 1 {
			return fmt.Sprintf("dans %d jours", days)
		}
		return "dans 1 jour"
	case hours > 0:
		return fmt.Sprintf("dans %dh%02d", hours, mins)
	case mins > 1:
		return fmt.Sprintf("dans %d minutes", mins)
	default:
		return fmt.Sprintf("dans %d minute", mins)
	}
}

// scheduleTimes joins a medication's intake times with commas.
func scheduleTimes(med store.Medication) string {
	times := make([]string, 0, len(med.Schedules))
	for _, s := range med.Schedules {
		times = append(times, s.Time)
	}
	return strings.Join(times, ", ")
}
