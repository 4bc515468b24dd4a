package record

// PathChoice names which path's output ships.
type PathChoice string

const (
	ChoosePrimary  PathChoice = "primary"
	ChooseFallback PathChoice = "fallback"
	ChooseNone     PathChoice = "none"
)

// ReconcileInput is everything the stop-time policy is allowed to see.
type ReconcileInput struct {
	PrimaryOK  bool
	FallbackOK bool

	// AudioRequiredButMissingFromPrimary: the session was configured
	// to record audio, and the primary container carries none.
	AudioRequiredButMissingFromPrimary bool
}

// Decision carries the chosen path and, when the preferred path was
// passed over, a one-line explanation for the operator.
type Decision struct {
	Use    PathChoice
	Reason string
}

// Reconcile picks the delivered output. Pure function: same input,
// same decision, no side effects.
func Reconcile(in ReconcileInput) Decision {
	switch {
	case in.PrimaryOK && !in.AudioRequiredButMissingFromPrimary:
		return Decision{Use: ChoosePrimary}
	case in.PrimaryOK && in.AudioRequiredButMissingFromPrimary && in.FallbackOK:
		return Decision{
			Use:    ChooseFallback,
			Reason: "primary output lacked the requested audio; delivering the fallback recording",
		}
	case in.PrimaryOK:
		return Decision{
			Use:    ChoosePrimary,
			Reason: "requested audio is missing from the recording",
		}
	case in.FallbackOK:
		return Decision{
			Use:    ChooseFallback,
			Reason: "primary path produced no output; delivering the compatibility recording",
		}
	default:
		return Decision{Use: ChooseNone}
	}
}
