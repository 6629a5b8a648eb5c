// api/controller/controllers.go
package controller

import (
	"github.com/propsync/keyway/api/scheduler"
	"github.com/propsync/keyway/api/service"
)

type Controllers struct {
	Rule    *RuleController
	Lock    *LockController
	Code    *CodeController
	Monitor *MonitorController
	Sweep   *SweepController
}

func InitializeControllers(services *service.Services, sweeper *scheduler.Sweeper) *Controllers {
	return &Controllers{
		Rule:    NewRuleController(services.RuleService),
		Lock:    NewLockController(services.LockService),
		Code:    NewCodeController(services.ProvisioningService),
		Monitor: NewMonitorController(services.MonitorService),
		Sweep:   NewSweepController(sweeper),
	}
}
