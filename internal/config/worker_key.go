package config

type WorkerKeyStruct struct {
	NotificationsQueue  string
	ClockTelemetryQueue string
}

var WorkerKey = &WorkerKeyStruct{
	NotificationsQueue:  "dispatch_notifications_queue",
	ClockTelemetryQueue: "persist_clock_telemetry_queue",
}
