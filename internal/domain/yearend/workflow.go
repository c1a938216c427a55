package yearend

import "fmt"

// NextStatus advances a result one step: calculated → confirmed → paid.
func NextStatus(current, action string) (string, error) {
	from, to, err := transition(action)
	if err != nil {
		return "", err
	}
	if current != from {
		return "", fmt.Errorf("%w: cannot %s a %s result", ErrInvalidTransition, action, current)
	}
	return to, nil
}

// transition returns the status an action requires and the one it produces.
func transition(action string) (from, to string, err error) {
	switch action {
	case ActionConfirm:
		return ResultStatusCalculated, ResultStatusConfirmed, nil
	case ActionPay:
		return ResultStatusConfirmed, ResultStatusPaid, nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}
