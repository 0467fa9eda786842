package harness

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("State", func() {
	It("should name the states", func() {
		Expect(Idle.String()).To(Equal("Idle"))
		Expect(ModeRegistersProgrammed.String()).To(Equal("ModeRegistersProgrammed"))
		Expect(TesterActive.String()).To(Equal("TesterActive"))
		Expect(State(42).String()).To(Equal("State(42)"))
	})

	It("should only move forward one state at a time", func() {
		sm := stateMachine{}

		for _, to := range []State{
			ClocksStarted,
			ResetReleased,
			ClockEnabled,
			ModeRegistersProgrammed,
			Calibrated,
			TesterActive,
		} {
			from := sm.state
			change, err := sm.advance(to)
			Expect(err).NotTo(HaveOccurred())
			Expect(change).To(Equal(StateChange{From: from, To: to}))
		}

		_, err := sm.advance(TesterActive)
		Expect(err).To(MatchError(ErrIllegalTransition))
	})

	It("should reject skipping a state", func() {
		sm := stateMachine{state: ClocksStarted}

		_, err := sm.advance(ClockEnabled)
		Expect(err).To(MatchError(ErrIllegalTransition))
		Expect(err.Error()).To(ContainSubstring("ClocksStarted -> ClockEnabled"))
		Expect(sm.state).To(Equal(ClocksStarted))
	})

	It("should reject going back", func() {
		sm := stateMachine{state: Calibrated}

		_, err := sm.advance(ResetReleased)
		Expect(err).To(MatchError(ErrIllegalTransition))
		Expect(sm.state).To(Equal(Calibrated))
	})
})
