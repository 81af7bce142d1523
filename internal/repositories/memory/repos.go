package memory

import (
	"context"
	"sort"
	"time"

	"barrel-backend/internal/apperr"
	"barrel-backend/internal/models"
)

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

type barrelRepo struct{ tx *transaction }

func (r barrelRepo) Create(_ context.Context, b *models.Barrel) error {
	st := &r.tx.state
	if _, taken := st.codes[b.Code]; taken {
		return apperr.ErrDuplicateCode.WithMessagef("barrel code %s already exists", b.Code)
	}
	st.barrels[b.ID] = cloneBarrel(*b)
	st.codes[b.Code] = b.ID
	st.track(b.ID)
	return nil
}

func (r barrelRepo) Get(_ context.Context, id string) (*models.Barrel, error) {
	b, ok := r.tx.state.barrels[id]
	if !ok {
		return nil, apperr.NotFound("barrel", id)
	}
	c := cloneBarrel(b)
	return &c, nil
}

func (r barrelRepo) GetForUpdate(ctx context.Context, id string) (*models.Barrel, error) {
	return r.Get(ctx, id)
}

func (r barrelRepo) GetByCode(ctx context.Context, code string) (*models.Barrel, error) {
	id, ok := r.tx.state.codes[code]
	if !ok {
		return nil, apperr.NotFound("barrel", code)
	}
	return r.Get(ctx, id)
}

func (r barrelRepo) Update(_ context.Context, b *models.Barrel) error {
	st := &r.tx.state
	old, ok := st.barrels[b.ID]
	if !ok {
		return apperr.NotFound("barrel", b.ID)
	}
	c := cloneBarrel(*b)
	c.Code = old.Code
	c.CreatedAt = old.CreatedAt
	c.CreatedBy = old.CreatedBy
	st.barrels[b.ID] = c
	return nil
}

func (r barrelRepo) List(_ context.Context, f models.BarrelFilter) ([]*models.Barrel, error) {
	st := &r.tx.state
	var out []*models.Barrel
	for _, b := range st.barrels {
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if f.Condition != "" && b.Condition != f.Condition {
			continue
		}
		if f.Location != "" && b.CurrentLocation != f.Location {
			continue
		}
		c := cloneBarrel(b)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return st.order[out[i].ID] > st.order[out[j].ID] })
	return page(out, f.Limit, f.Offset), nil
}

type damageRepo struct{ tx *transaction }

func (r damageRepo) activeFor(barrelID, except string) *models.BarrelDamage {
	for _, d := range r.tx.state.damages {
		if d.BarrelID == barrelID && d.ID != except && d.Active() {
			c := cloneDamage(d)
			return &c
		}
	}
	return nil
}

func (r damageRepo) Create(_ context.Context, d *models.BarrelDamage) error {
	if d.Active() && r.activeFor(d.BarrelID, d.ID) != nil {
		return apperr.ErrActiveReportExists.WithMessagef("barrel %s already has an active damage report", d.BarrelID)
	}
	r.tx.state.damages[d.ID] = cloneDamage(*d)
	r.tx.state.track(d.ID)
	return nil
}

func (r damageRepo) Get(_ context.Context, id string) (*models.BarrelDamage, error) {
	d, ok := r.tx.state.damages[id]
	if !ok {
		return nil, apperr.NotFound("damage report", id)
	}
	c := cloneDamage(d)
	return &c, nil
}

func (r damageRepo) GetActiveByBarrel(_ context.Context, barrelID string) (*models.BarrelDamage, error) {
	return r.activeFor(barrelID, ""), nil
}

func (r damageRepo) Update(_ context.Context, d *models.BarrelDamage) error {
	old, ok := r.tx.state.damages[d.ID]
	if !ok {
		return apperr.NotFound("damage report", d.ID)
	}
	if d.Active() && r.activeFor(d.BarrelID, d.ID) != nil {
		return apperr.ErrActiveReportExists.WithMessagef("barrel %s already has an active damage report", d.BarrelID)
	}
	c := cloneDamage(*d)
	c.BarrelID = old.BarrelID
	c.CreatedAt = old.CreatedAt
	r.tx.state.damages[d.ID] = c
	return nil
}

func (r damageRepo) list(keep func(models.BarrelDamage) bool, newestFirst bool) []*models.BarrelDamage {
	st := &r.tx.state
	var out []*models.BarrelDamage
	for _, d := range st.damages {
		if keep(d) {
			c := cloneDamage(d)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return st.order[out[i].ID] > st.order[out[j].ID]
		}
		return st.order[out[i].ID] < st.order[out[j].ID]
	})
	return out
}

func (r damageRepo) ListByBarrel(_ context.Context, barrelID string) ([]*models.BarrelDamage, error) {
	return r.list(func(d models.BarrelDamage) bool { return d.BarrelID == barrelID }, true), nil
}

func (r damageRepo) ListActive(_ context.Context) ([]*models.BarrelDamage, error) {
	return r.list(func(d models.BarrelDamage) bool { return d.Active() }, false), nil
}

type repairRepo struct{ tx *transaction }

func (r repairRepo) withLog(rep models.BarrelRepair) *models.BarrelRepair {
	c := cloneRepair(rep)
	c.WorkLog = append([]models.WorkLogEntry{}, r.tx.state.workLogs[rep.ID]...)
	return &c
}

func (r repairRepo) Create(_ context.Context, rep *models.BarrelRepair) error {
	c := cloneRepair(*rep)
	c.WorkLog = nil
	r.tx.state.repairs[rep.ID] = c
	r.tx.state.track(rep.ID)
	return nil
}

func (r repairRepo) Get(_ context.Context, id string) (*models.BarrelRepair, error) {
	rep, ok := r.tx.state.repairs[id]
	if !ok {
		return nil, apperr.NotFound("repair", id)
	}
	return r.withLog(rep), nil
}

func (r repairRepo) list(keep func(models.BarrelRepair) bool, newestFirst bool) []*models.BarrelRepair {
	st := &r.tx.state
	var out []*models.BarrelRepair
	for _, rep := range st.repairs {
		if keep(rep) {
			out = append(out, r.withLog(rep))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return st.order[out[i].ID] > st.order[out[j].ID]
		}
		return st.order[out[i].ID] < st.order[out[j].ID]
	})
	return out
}

func (r repairRepo) LatestByDamage(_ context.Context, damageID string) (*models.BarrelRepair, error) {
	all := r.list(func(rep models.BarrelRepair) bool { return rep.DamageID == damageID }, true)
	if len(all) == 0 {
		return nil, nil
	}
	return all[0], nil
}

func (r repairRepo) ListByDamage(_ context.Context, damageID string) ([]*models.BarrelRepair, error) {
	return r.list(func(rep models.BarrelRepair) bool { return rep.DamageID == damageID }, false), nil
}

func (r repairRepo) ListByAssignee(_ context.Context, assignee string) ([]*models.BarrelRepair, error) {
	return r.list(func(rep models.BarrelRepair) bool { return rep.AssignedTo == assignee }, true), nil
}

func (r repairRepo) TransitionStatus(_ context.Context, id string, from, to models.RepairStatus, patch models.RepairPatch, at time.Time) (*models.BarrelRepair, error) {
	rep, ok := r.tx.state.repairs[id]
	if !ok {
		return nil, apperr.NotFound("repair", id)
	}
	if rep.Status != from {
		return nil, apperr.ErrStaleState.WithMessagef("repair %s is %s, expected %s", id, rep.Status, from)
	}
	patch.Apply(&rep)
	rep.Status = to
	rep.UpdatedAt = at
	r.tx.state.repairs[id] = cloneRepair(rep)
	return r.withLog(rep), nil
}

func (r repairRepo) AppendWorkLog(_ context.Context, repairID string, entry *models.WorkLogEntry) error {
	if _, ok := r.tx.state.repairs[repairID]; !ok {
		return apperr.NotFound("repair", repairID)
	}
	log := r.tx.state.workLogs[repairID]
	entry.Seq = len(log) + 1
	r.tx.state.workLogs[repairID] = append(log, *entry)
	return nil
}

type movementRepo struct{ tx *transaction }

func (r movementRepo) Append(_ context.Context, m *models.BarrelMovement) error {
	r.tx.state.movements = append(r.tx.state.movements, *m)
	return nil
}

func (r movementRepo) ListByBarrel(_ context.Context, barrelID string, limit, offset int) ([]*models.BarrelMovement, error) {
	var out []*models.BarrelMovement
	for _, m := range r.tx.state.movements {
		if m.BarrelID == barrelID {
			c := m
			out = append(out, &c)
		}
	}
	return page(out, limit, offset), nil
}

type auditRepo struct{ tx *transaction }

// LockChain is a no-op: the store lock already serializes every writer.
func (r auditRepo) LockChain(context.Context) error { return nil }

func (r auditRepo) Tail(context.Context) (*models.AuditLog, error) {
	log := r.tx.state.audit
	if len(log) == 0 {
		return nil, nil
	}
	c := cloneAudit(log[len(log)-1])
	return &c, nil
}

func (r auditRepo) Insert(_ context.Context, entry *models.AuditLog) error {
	if n := len(r.tx.state.audit); n > 0 && r.tx.state.audit[n-1].Seq >= entry.Seq {
		return apperr.ErrStaleState.WithMessagef("audit seq %d is not after %d", entry.Seq, r.tx.state.audit[n-1].Seq)
	}
	r.tx.state.audit = append(r.tx.state.audit, cloneAudit(*entry))
	return nil
}

func (r auditRepo) List(_ context.Context, f models.AuditFilter) ([]*models.AuditLog, error) {
	var out []*models.AuditLog
	log := r.tx.state.audit
	for i := range log {
		e := log[len(log)-1-i]
		if f.Ascending {
			e = log[i]
		}
		if f.EntityType != "" && e.EntityType != f.EntityType {
			continue
		}
		if f.EntityID != "" && e.EntityID != f.EntityID {
			continue
		}
		if f.UserID != "" && e.UserID != f.UserID {
			continue
		}
		if f.Action != "" && string(e.Action) != f.Action {
			continue
		}
		if f.From != nil && e.Timestamp.Before(*f.From) {
			continue
		}
		if f.To != nil && !e.Timestamp.Before(*f.To) {
			continue
		}
		c := cloneAudit(e)
		out = append(out, &c)
	}
	return page(out, f.Limit, f.Offset), nil
}

func (r auditRepo) Range(_ context.Context, afterSeq int64, limit int) ([]*models.AuditLog, error) {
	var out []*models.AuditLog
	for _, e := range r.tx.state.audit {
		if e.Seq <= afterSeq {
			continue
		}
		c := cloneAudit(e)
		out = append(out, &c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type notificationRepo struct{ tx *transaction }

func (r notificationRepo) Create(_ context.Context, n *models.Notification) error {
	r.tx.state.notifications[n.ID] = cloneNotification(*n)
	r.tx.state.track(n.ID)
	return nil
}

func (r notificationRepo) Get(_ context.Context, id string) (*models.Notification, error) {
	n, ok := r.tx.state.notifications[id]
	if !ok {
		return nil, apperr.NotFound("notification", id)
	}
	c := cloneNotification(n)
	return &c, nil
}

func (r notificationRepo) MarkRead(_ context.Context, id, readBy string, at time.Time) error {
	n, ok := r.tx.state.notifications[id]
	if !ok {
		return apperr.NotFound("notification", id)
	}
	n.Read = true
	n.ReadAt = &at
	n.ReadBy = readBy
	r.tx.state.notifications[id] = n
	return nil
}

func addressedTo(n models.Notification, userID, role string) bool {
	if n.RecipientID != "" {
		return n.RecipientID == userID
	}
	return n.RecipientRole != "" && n.RecipientRole == role
}

func (r notificationRepo) ListForRecipient(_ context.Context, userID, role string, unreadOnly bool, limit int) ([]*models.Notification, error) {
	st := &r.tx.state
	var out []*models.Notification
	for _, n := range st.notifications {
		if !addressedTo(n, userID, role) || (unreadOnly && n.Read) {
			continue
		}
		c := cloneNotification(n)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return st.order[out[i].ID] > st.order[out[j].ID] })
	return page(out, limit, 0), nil
}

func (r notificationRepo) CountUnread(_ context.Context, userID, role string) (int, error) {
	count := 0
	for _, n := range r.tx.state.notifications {
		if !n.Read && addressedTo(n, userID, role) {
			count++
		}
	}
	return count, nil
}
