package part

// Guard predicates shared by the reconciliation handlers. Every handler
// re-reads the current event and evaluates its own guard at execution time.

// CanComplete reports whether the completion check applies.
func CanComplete(e *Event) bool {
	return e != nil && e.Status.In(StatusPackage, StatusDefect, StatusCompleted)
}

// IsCompleted reports whether the batch reached Completed.
func IsCompleted(e *Event) bool {
	return e != nil && e.Status == StatusCompleted
}

// IsCompletedFbo reports a Completed batch consumed by an FBO pipeline.
func IsCompletedFbo(e *Event) bool {
	return IsCompleted(e) && e.Complete.IsFbo()
}

// IsCompletedFbs reports a Completed batch consumed by an FBS pipeline.
func IsCompletedFbs(e *Event) bool {
	return IsCompleted(e) && e.Complete.IsFbs()
}

// CanCloseByZero reports a packaging or defective batch with nothing left.
func CanCloseByZero(e *Event, quantity int) bool {
	return e != nil && quantity == 0 && e.Status.In(StatusPackage, StatusDefect)
}

// IsWorkingPackage reports a packaged event with an assigned working stage.
func IsWorkingPackage(e *Event) bool {
	return e != nil && e.Status == StatusPackage && e.Working.Assigned()
}

// IsWorkingDefect reports a defect event blamed on an assigned working stage.
func IsWorkingDefect(e *Event) bool {
	return e != nil && e.Status == StatusDefect && e.Working.Assigned()
}

// AcceptsProducts reports whether lines may still be added.
func AcceptsProducts(e *Event) bool {
	return e != nil && e.Status == StatusOpen
}

// ReconcilableStatuses are the statuses the sweeper re-announces.
// Completed batches are re-announced only within a bounded window, see
// IsSettled.
func ReconcilableStatuses() []Status {
	return []Status{StatusPackage, StatusDefect, StatusCompleted}
}

// IsSettled reports whether a batch in status s has left production. Work
// left for a settled batch is retried only for a limited time.
func IsSettled(s Status) bool {
	return s == StatusCompleted
}
