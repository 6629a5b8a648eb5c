// api/service/services.go
package service

import (
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/propsync/keyway/api/audit"
	"github.com/propsync/keyway/api/dao"
	"github.com/propsync/keyway/api/engine"
	"github.com/propsync/keyway/api/util"
)

// Services bundles the initialized service layer for the controllers.
type Services struct {
	RuleService         IRuleService
	ProvisioningService IProvisioningService
	LockService         ILockService
	MonitorService      IMonitorService
}

// InitializeServices builds the DAOs and wires the service graph.
func InitializeServices(driver neo4j.Driver, registry AdapterResolver, auditService audit.Service, eventBus *util.EventBus) *Services {
	ruleDAO := dao.NewRuleDAO(driver)
	lockDAO := dao.NewLockDAO(driver)
	codeDAO := dao.NewCodeDAO(driver)

	validationUtil := util.NewValidationUtil()
	cacheService := util.NewCacheService()
	notificationSvc := util.NewNotificationService()
	evaluator := engine.NewEvaluator()

	provisioningService := NewProvisioningService(ruleDAO, codeDAO, lockDAO, registry, auditService, notificationSvc, eventBus, PolicyFromConfig())
	ruleService := NewRuleService(ruleDAO, provisioningService, validationUtil, cacheService, notificationSvc, eventBus)
	lockService := NewLockService(lockDAO, registry, auditService, validationUtil, cacheService)
	monitorService := NewMonitorService(ruleDAO, lockDAO, codeDAO, auditService, evaluator, validationUtil, notificationSvc, eventBus, SeveritiesFromConfig())

	return &Services{
		RuleService:         ruleService,
		ProvisioningService: provisioningService,
		LockService:         lockService,
		MonitorService:      monitorService,
	}
}
