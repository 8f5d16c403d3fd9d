package checkout

import "errors"

var (
	ErrIllegalTransition  = errors.New("illegal transition of checkout state")
	ErrNothingToReconcile = errors.New("no checkout with an unknown outcome to reconcile")
)
