package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/genbaworks/tally/pkg/accounts"
	"github.com/genbaworks/tally/pkg/contracts"
	"github.com/genbaworks/tally/pkg/documents"
)

// fakeContracts is an in-memory contracts.Service
type fakeContracts struct {
	byID         map[int64]*contracts.Contract
	packages     map[int64]*contracts.Package
	contractPkgs map[int64][]int64
	nextID       int64
}

func newFakeContracts() *fakeContracts {
	return &fakeContracts{
		byID:         make(map[int64]*contracts.Contract),
		packages:     make(map[int64]*contracts.Package),
		contractPkgs: make(map[int64][]int64),
	}
}

func (f *fakeContracts) addPackage(p *contracts.Package) {
	f.packages[p.ID] = p
}

func (f *fakeContracts) add(c *contracts.Contract, packageIDs ...int64) *contracts.Contract {
	f.nextID++
	c.ID = f.nextID
	if c.ContractNumber == "" {
		c.ContractNumber = fmt.Sprintf("CT-%06d", c.ID)
	}
	f.byID[c.ID] = c
	f.contractPkgs[c.ID] = packageIDs
	return c
}

func (f *fakeContracts) CreateContract(req *contracts.CreateContractRequest) (*contracts.Contract, error) {
	c := &contracts.Contract{
		OrgID:               req.OrgID,
		Status:              contracts.StatusDraft,
		BillingCycle:        req.BillingCycle,
		BillingDay:          req.BillingDay,
		StartDate:           req.StartDate,
		SeatLimit:           req.SeatLimit,
		InitialFees:         req.InitialFees,
		AdminName:           req.AdminName,
		AdminEmail:          req.AdminEmail,
		AdminSecret:         req.AdminSecret,
		BillingContactEmail: req.BillingContactEmail,
	}
	return f.add(c, req.PackageIDs...), nil
}

func (f *fakeContracts) GetContract(id int64) (*contracts.Contract, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (f *fakeContracts) GetActiveContractByOrg(orgID int64) (*contracts.Contract, error) {
	for _, c := range f.byID {
		if c.OrgID == orgID && c.Status == contracts.StatusActive {
			clone := *c
			return &clone, nil
		}
	}
	return nil, contracts.ErrNotFound
}

func (f *fakeContracts) CancelContract(id int64) error {
	c, ok := f.byID[id]
	if !ok {
		return contracts.ErrNotFound
	}
	if c.Status != contracts.StatusActive {
		return &contracts.PolicyViolationError{Policy: "cancellation", Reason: "not active"}
	}
	now := time.Now()
	c.Status = contracts.StatusCancelled
	c.CancelledAt = &now
	return nil
}

func (f *fakeContracts) SetLedgerCustomerID(id int64, customerID string) error {
	c, ok := f.byID[id]
	if !ok {
		return contracts.ErrNotFound
	}
	c.LedgerCustomerID = customerID
	return nil
}

func (f *fakeContracts) CompleteActivation(id int64, adminAccountID string) error {
	c, ok := f.byID[id]
	if !ok {
		return contracts.ErrNotFound
	}
	if c.Status != contracts.StatusDraft {
		return &contracts.PolicyViolationError{Policy: "completion", Reason: "not draft"}
	}
	now := time.Now()
	c.Status = contracts.StatusActive
	c.AdminAccountID = adminAccountID
	c.AdminSecret = ""
	c.CompletedAt = &now
	return nil
}

func (f *fakeContracts) MarkBilled(id int64) error {
	c, ok := f.byID[id]
	if !ok {
		return contracts.ErrNotFound
	}
	c.Billed = true
	return nil
}

func (f *fakeContracts) ConsumePendingCharge(id int64) (int64, string, error) {
	c, ok := f.byID[id]
	if !ok {
		return 0, "", contracts.ErrNotFound
	}
	if c.PendingProratedCharge == nil {
		return 0, "", nil
	}
	amount := *c.PendingProratedCharge
	desc := ""
	if c.PendingProratedDescription != nil {
		desc = *c.PendingProratedDescription
	}
	c.PendingProratedCharge = nil
	c.PendingProratedDescription = nil
	c.PlanChangeType = nil
	return amount, desc, nil
}

func (f *fakeContracts) RestorePendingCharge(id int64, amount int64, description string) error {
	c, ok := f.byID[id]
	if !ok {
		return contracts.ErrNotFound
	}
	c.PendingProratedCharge = &amount
	c.PendingProratedDescription = &description
	return nil
}

func (f *fakeContracts) GetPackagesForContract(contractID int64) ([]*contracts.Package, error) {
	return f.GetPackagesByIDs(f.contractPkgs[contractID])
}

func (f *fakeContracts) GetPackagesByIDs(ids []int64) ([]*contracts.Package, error) {
	out := make([]*contracts.Package, 0, len(ids))
	for _, id := range ids {
		p, ok := f.packages[id]
		if !ok {
			return nil, fmt.Errorf("package %d not found", id)
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeContracts) ListPackages() ([]*contracts.Package, error) {
	out := make([]*contracts.Package, 0, len(f.packages))
	for _, p := range f.packages {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeContracts) ApplyPlanChange(change *contracts.PlanChange) error {
	c, ok := f.byID[change.ContractID]
	if !ok {
		return contracts.ErrNotFound
	}
	f.contractPkgs[change.ContractID] = change.PackageIDs
	c.SeatLimit = change.SeatLimit
	charge := change.PendingCharge
	desc := change.Description
	changeType := change.ChangeType
	c.PendingProratedCharge = &charge
	c.PendingProratedDescription = &desc
	c.PlanChangeType = &changeType
	c.GraceDeadline = change.GraceDeadline
	return nil
}

func (f *fakeContracts) ClearGraceDeadline(id int64, expected time.Time) (bool, error) {
	c, ok := f.byID[id]
	if !ok {
		return false, contracts.ErrNotFound
	}
	if c.GraceDeadline == nil || !c.GraceDeadline.Equal(expected) {
		return false, nil
	}
	c.GraceDeadline = nil
	return true, nil
}

func (f *fakeContracts) ListDueForBilling(day int, monthEnd bool) ([]*contracts.Contract, error) {
	var out []*contracts.Contract
	for _, c := range f.byID {
		if c.Status != contracts.StatusActive {
			continue
		}
		if c.BillingDay == day || (monthEnd && c.BillingDay >= day) {
			clone := *c
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeContracts) ListActiveWithGraceDeadline() ([]*contracts.Contract, error) {
	var out []*contracts.Contract
	for _, c := range f.byID {
		if c.Status == contracts.StatusActive && c.GraceDeadline != nil {
			clone := *c
			out = append(out, &clone)
		}
	}
	return out, nil
}

// fakeDocuments is an in-memory documents.Service
type fakeDocuments struct {
	byID   map[int64]*documents.Document
	nextID int64

	failCreate error
}

func newFakeDocuments() *fakeDocuments {
	return &fakeDocuments{byID: make(map[int64]*documents.Document)}
}

func (f *fakeDocuments) CreateWithItems(ctx context.Context, doc *documents.Document) error {
	if f.failCreate != nil {
		return f.failCreate
	}
	f.nextID++
	doc.ID = f.nextID
	if doc.Number == "" {
		doc.Number = documents.NewNumber(doc.DocumentType)
	}
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = doc.CreatedAt
	for i := range doc.LineItems {
		doc.LineItems[i].ID = int64(i + 1)
		doc.LineItems[i].DocumentID = doc.ID
	}
	clone := *doc
	f.byID[doc.ID] = &clone
	return nil
}

func (f *fakeDocuments) GetDocument(ctx context.Context, id int64) (*documents.Document, error) {
	doc, ok := f.byID[id]
	if !ok {
		return nil, documents.ErrNotFound
	}
	clone := *doc
	return &clone, nil
}

func (f *fakeDocuments) FindOpenEstimate(ctx context.Context, contractID int64) (*documents.Document, error) {
	var newest *documents.Document
	for _, doc := range f.byID {
		if doc.ContractID != contractID || doc.DocumentType != documents.TypeEstimate {
			continue
		}
		if doc.Status != documents.StatusEstimate && doc.Status != documents.StatusEstimateSent {
			continue
		}
		if newest == nil || doc.ID > newest.ID {
			newest = doc
		}
	}
	if newest == nil {
		return nil, documents.ErrNotFound
	}
	clone := *newest
	return &clone, nil
}

func (f *fakeDocuments) HasNonRejectedEstimate(ctx context.Context, contractID int64) (bool, error) {
	for _, doc := range f.byID {
		if doc.ContractID == contractID && doc.DocumentType == documents.TypeEstimate && doc.Status != documents.StatusRejected {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDocuments) FindInitialInvoice(ctx context.Context, contractID int64) (*documents.Document, error) {
	for _, doc := range f.byID {
		if doc.ContractID == contractID && doc.DocumentType == documents.TypeInvoice && doc.IsInitial {
			clone := *doc
			return &clone, nil
		}
	}
	return nil, documents.ErrNotFound
}

func (f *fakeDocuments) UpdateStatus(ctx context.Context, id int64, from, to documents.Status) error {
	doc, ok := f.byID[id]
	if !ok {
		return documents.ErrNotFound
	}
	if doc.Status != from || !documents.CanTransition(doc.DocumentType, from, to) {
		return &documents.InvalidTransitionError{DocumentID: id, Type: doc.DocumentType, From: doc.Status, To: to}
	}
	doc.Status = to
	return nil
}

func (f *fakeDocuments) SetLedgerDocID(ctx context.Context, id int64, ledgerDocID string) error {
	doc, ok := f.byID[id]
	if !ok {
		return documents.ErrNotFound
	}
	doc.LedgerDocID = ledgerDocID
	return nil
}

func (f *fakeDocuments) MarkPaid(ctx context.Context, id int64, paidAt time.Time) error {
	doc, ok := f.byID[id]
	if !ok {
		return documents.ErrNotFound
	}
	if doc.DocumentType != documents.TypeInvoice || doc.Status != documents.StatusSent {
		return &documents.InvalidTransitionError{DocumentID: id, Type: doc.DocumentType, From: doc.Status, To: documents.StatusPaid}
	}
	doc.Status = documents.StatusPaid
	doc.PaidAt = &paidAt
	return nil
}

func (f *fakeDocuments) ListByContract(ctx context.Context, contractID int64) ([]*documents.Document, error) {
	var out []*documents.Document
	for _, doc := range f.byID {
		if doc.ContractID == contractID {
			clone := *doc
			out = append(out, &clone)
		}
	}
	return out, nil
}

// fakeAccounts is an in-memory accounts.Service
type fakeAccounts struct {
	byID   map[int64]*accounts.Account
	nextID int64

	failCreate error
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{byID: make(map[int64]*accounts.Account)}
}

func (f *fakeAccounts) addActive(orgID int64, email string, createdAt time.Time) *accounts.Account {
	f.nextID++
	a := &accounts.Account{
		ID:        f.nextID,
		OrgID:     orgID,
		Email:     email,
		Role:      accounts.RoleMember,
		Active:    true,
		CreatedAt: createdAt,
	}
	f.byID[a.ID] = a
	return a
}

func (f *fakeAccounts) CreateAdminRecord(ctx context.Context, account *accounts.Account) error {
	if f.failCreate != nil {
		return f.failCreate
	}
	f.nextID++
	account.ID = f.nextID
	account.Role = accounts.RoleAdmin
	account.Active = true
	account.CreatedAt = time.Now()
	clone := *account
	f.byID[account.ID] = &clone
	return nil
}

func (f *fakeAccounts) GetAccount(ctx context.Context, id int64) (*accounts.Account, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, accounts.ErrNotFound
	}
	clone := *a
	return &clone, nil
}

func (f *fakeAccounts) CountActive(ctx context.Context, orgID int64) (int, error) {
	count := 0
	for _, a := range f.byID {
		if a.OrgID == orgID && a.Active {
			count++
		}
	}
	return count, nil
}

func (f *fakeAccounts) ListNewestActive(ctx context.Context, orgID int64, limit int) ([]*accounts.Account, error) {
	var all []*accounts.Account
	for _, a := range f.byID {
		if a.OrgID == orgID && a.Active {
			clone := *a
			all = append(all, &clone)
		}
	}
	// newest first, ID as tiebreaker
	for i := 0; i < len(all)-1; i++ {
		for j := i + 1; j < len(all); j++ {
			if all[i].CreatedAt.Before(all[j].CreatedAt) ||
				(all[i].CreatedAt.Equal(all[j].CreatedAt) && all[i].ID < all[j].ID) {
				all[i], all[j] = all[j], all[i]
			}
		}
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeAccounts) ListActiveAdmins(ctx context.Context, orgID int64) ([]*accounts.Account, error) {
	var out []*accounts.Account
	for _, a := range f.byID {
		if a.OrgID == orgID && a.Active && a.Role == accounts.RoleAdmin {
			clone := *a
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeAccounts) Deactivate(ctx context.Context, id int64) (bool, error) {
	a, ok := f.byID[id]
	if !ok {
		return false, accounts.ErrNotFound
	}
	if !a.Active {
		return false, nil
	}
	now := time.Now()
	a.Active = false
	a.DeactivatedAt = &now
	return true, nil
}

func (f *fakeAccounts) DeleteRecord(ctx context.Context, id int64) error {
	if _, ok := f.byID[id]; !ok {
		return accounts.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

// fakeProvisioner is an in-memory accounts.Provisioner
type fakeProvisioner struct {
	created []string
	deleted []string
	nextID  int

	failCreate error
}

func (f *fakeProvisioner) CreateIdentity(ctx context.Context, email, password string) (string, error) {
	if f.failCreate != nil {
		return "", f.failCreate
	}
	f.nextID++
	id := fmt.Sprintf("auth_%03d", f.nextID)
	f.created = append(f.created, id)
	return id, nil
}

func (f *fakeProvisioner) DeleteIdentity(ctx context.Context, authID string) error {
	f.deleted = append(f.deleted, authID)
	return nil
}

// fakeInvalidator records entitlement cache invalidations
type fakeInvalidator struct {
	invalidated []int64
}

func (f *fakeInvalidator) Invalidate(ctx context.Context, orgID int64) {
	f.invalidated = append(f.invalidated, orgID)
}

var errBoom = errors.New("boom")
