package ports

import "time"

type SchedulerService interface {
	Start()
	Stop()

	AddNow(delta int64) int64
	AfterNow(t int64) bool
	ScheduleTaskOnce(at int64, task func()) error
	ScheduleTaskEvery(interval time.Duration, task func()) error
}
