// Package models defines the marker phrases that gate phase transitions.
//
// These literals appear inside bot-authored messages and are matched as
// exact substrings by the phase detector's history backfill. Changing any
// of them silently changes phase detection for historical conversations.
package models

const (
	// MarkerGoalComplete is emitted by the goal discovery handler when the
	// user confirms their goal; its presence in outbound history marks the
	// goal phase as complete.
	MarkerGoalComplete = "Perfeito! Agora vamos entender seus gastos mensais"

	// MarkerExpensesComplete is emitted by the LLM when the monthly expense
	// estimate is ready; its presence in outbound history marks the
	// expenses phase as complete.
	MarkerExpensesComplete = "então essa é a estimativa dos seus custos mensais:"

	// MarkerGoalProposal is the phrase the goal discovery prompt instructs
	// the model to emit once goal type, amount and timeline are all known.
	MarkerGoalProposal = "Então podemos considerar que seu objetivo é:"

	// MarkerGoalConfirmQuestion is the confirmation question appended after
	// a goal proposal. The goal discovery handler only treats an inbound
	// message as a confirmation when the previous outbound turn contains it.
	MarkerGoalConfirmQuestion = "Podemos considerar este objetivo e seguir para a próxima etapa?"
)
