package shared

import "context"

// TenantLocker упорядочивает циклы чтение-изменение-запись одного агентства.
// Возвращённый unlock вызывается ровно один раз.
type TenantLocker interface {
	LockTenant(ctx context.Context, agencyID AgencyID) (unlock func(), err error)
}
