package config

type WorkerKeyStruct struct {
	// AttemptDeadlines is the sorted set of armed attempt deadlines
	// (member = attempt ID, score = deadline unix milliseconds).
	AttemptDeadlines string
}

var WorkerKey = &WorkerKeyStruct{
	AttemptDeadlines: "attempt_deadlines",
}
