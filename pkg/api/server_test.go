package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/genbaworks/tally/pkg/accounts"
	"github.com/genbaworks/tally/pkg/billing"
	"github.com/genbaworks/tally/pkg/contracts"
	"github.com/genbaworks/tally/pkg/documents"
	"github.com/genbaworks/tally/pkg/enforcer"
	"github.com/genbaworks/tally/pkg/entitlement"
	"github.com/genbaworks/tally/pkg/lifecycle"
	"github.com/genbaworks/tally/pkg/middleware"
	"github.com/genbaworks/tally/pkg/observability"
	"github.com/genbaworks/tally/pkg/orgs"
)

const testToken = "test-admin-token"

// fakeContractService stubs contracts.Service for handler tests
type fakeContractService struct {
	contracts map[int64]*contracts.Contract
	createErr error
}

func newFakeContractService() *fakeContractService {
	return &fakeContractService{contracts: make(map[int64]*contracts.Contract)}
}

func (f *fakeContractService) CreateContract(req *contracts.CreateContractRequest) (*contracts.Contract, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	c := &contracts.Contract{
		ID:             int64(len(f.contracts) + 1),
		ContractNumber: "CT-TEST",
		OrgID:          req.OrgID,
		Status:         contracts.StatusDraft,
		BillingCycle:   req.BillingCycle,
		BillingDay:     req.BillingDay,
		StartDate:      req.StartDate,
		SeatLimit:      req.SeatLimit,
	}
	f.contracts[c.ID] = c
	return c, nil
}

func (f *fakeContractService) GetContract(id int64) (*contracts.Contract, error) {
	c, ok := f.contracts[id]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	return c, nil
}

func (f *fakeContractService) GetActiveContractByOrg(orgID int64) (*contracts.Contract, error) {
	return nil, contracts.ErrNotFound
}
func (f *fakeContractService) CancelContract(id int64) error                   { return nil }
func (f *fakeContractService) SetLedgerCustomerID(id int64, cid string) error  { return nil }
func (f *fakeContractService) CompleteActivation(id int64, admin string) error { return nil }
func (f *fakeContractService) MarkBilled(id int64) error                       { return nil }
func (f *fakeContractService) ConsumePendingCharge(id int64) (int64, string, error) {
	return 0, "", nil
}
func (f *fakeContractService) RestorePendingCharge(id int64, amount int64, description string) error {
	return nil
}
func (f *fakeContractService) GetPackagesForContract(contractID int64) ([]*contracts.Package, error) {
	return nil, nil
}
func (f *fakeContractService) GetPackagesByIDs(ids []int64) ([]*contracts.Package, error) {
	return nil, nil
}
func (f *fakeContractService) ListPackages() ([]*contracts.Package, error)        { return nil, nil }
func (f *fakeContractService) ApplyPlanChange(change *contracts.PlanChange) error { return nil }
func (f *fakeContractService) ClearGraceDeadline(id int64, expected time.Time) (bool, error) {
	return false, nil
}
func (f *fakeContractService) ListDueForBilling(day int, monthEnd bool) ([]*contracts.Contract, error) {
	return nil, nil
}
func (f *fakeContractService) ListActiveWithGraceDeadline() ([]*contracts.Contract, error) {
	return nil, nil
}

// fakeDocumentService stubs documents.Service
type fakeDocumentService struct {
	docs []*documents.Document
}

func (f *fakeDocumentService) CreateWithItems(ctx context.Context, doc *documents.Document) error {
	return nil
}
func (f *fakeDocumentService) GetDocument(ctx context.Context, id int64) (*documents.Document, error) {
	return nil, documents.ErrNotFound
}
func (f *fakeDocumentService) FindOpenEstimate(ctx context.Context, contractID int64) (*documents.Document, error) {
	return nil, documents.ErrNotFound
}
func (f *fakeDocumentService) HasNonRejectedEstimate(ctx context.Context, contractID int64) (bool, error) {
	return false, nil
}
func (f *fakeDocumentService) FindInitialInvoice(ctx context.Context, contractID int64) (*documents.Document, error) {
	return nil, documents.ErrNotFound
}
func (f *fakeDocumentService) UpdateStatus(ctx context.Context, id int64, from, to documents.Status) error {
	return nil
}
func (f *fakeDocumentService) SetLedgerDocID(ctx context.Context, id int64, ledgerDocID string) error {
	return nil
}
func (f *fakeDocumentService) MarkPaid(ctx context.Context, id int64, paidAt time.Time) error {
	return nil
}
func (f *fakeDocumentService) ListByContract(ctx context.Context, contractID int64) ([]*documents.Document, error) {
	return f.docs, nil
}

// fakeLifecycle records calls and returns canned results
type fakeLifecycle struct {
	estimate  *documents.Document
	invoice   *documents.Document
	account   *accounts.Account
	preview   *billing.ProrationPreview
	planRes   *lifecycle.PlanChangeResult
	runRes    *lifecycle.BillingRunResult
	err       error
	lastAsOf  time.Time
	lastActor string
}

func (f *fakeLifecycle) GenerateEstimate(ctx context.Context, contractID int64, actor string) (*documents.Document, error) {
	f.lastActor = actor
	return f.estimate, f.err
}
func (f *fakeLifecycle) MarkEstimateSent(ctx context.Context, contractID int64, actor string) (*documents.Document, error) {
	return f.estimate, f.err
}
func (f *fakeLifecycle) RejectEstimate(ctx context.Context, contractID int64, actor string) error {
	return f.err
}
func (f *fakeLifecycle) RegenerateEstimate(ctx context.Context, contractID int64, actor string) (*documents.Document, error) {
	return f.estimate, f.err
}
func (f *fakeLifecycle) ConvertEstimateToInvoice(ctx context.Context, contractID int64, actor string) (*documents.Document, error) {
	return f.invoice, f.err
}
func (f *fakeLifecycle) RecordInvoicePaid(ctx context.Context, documentID int64, actor string) error {
	return f.err
}
func (f *fakeLifecycle) CompleteContract(ctx context.Context, contractID int64, password, actor string) (*accounts.Account, error) {
	return f.account, f.err
}
func (f *fakeLifecycle) CancelContract(ctx context.Context, contractID int64, actor string) error {
	return f.err
}
func (f *fakeLifecycle) PreviewPlanChange(ctx context.Context, contractID int64, newPackageIDs []int64) (*billing.ProrationPreview, error) {
	return f.preview, f.err
}
func (f *fakeLifecycle) ChangePlan(ctx context.Context, contractID int64, newPackageIDs []int64, newSeatLimit int, actor string) (*lifecycle.PlanChangeResult, error) {
	return f.planRes, f.err
}
func (f *fakeLifecycle) RunRecurringBilling(ctx context.Context, asOf time.Time) (*lifecycle.BillingRunResult, error) {
	f.lastAsOf = asOf
	return f.runRes, f.err
}

// fakeEnforcer stubs EnforcerRunner
type fakeEnforcer struct {
	result    *enforcer.Result
	err       error
	lastToday time.Time
}

func (f *fakeEnforcer) Run(ctx context.Context, today time.Time) (*enforcer.Result, error) {
	f.lastToday = today
	return f.result, f.err
}

// fakeResolver stubs FeatureResolver
type fakeResolver struct {
	state       entitlement.FeatureState
	err         error
	invalidated []int64
}

func (f *fakeResolver) Resolve(ctx context.Context, orgID int64) (entitlement.FeatureState, error) {
	return f.state, f.err
}

func (f *fakeResolver) Invalidate(ctx context.Context, orgID int64) {
	f.invalidated = append(f.invalidated, orgID)
}

// fakeFlagStore stubs FlagStore with an in-memory grant set
type fakeFlagStore struct {
	grants map[int64]map[string]string
}

func newFakeFlagStore() *fakeFlagStore {
	return &fakeFlagStore{grants: make(map[int64]map[string]string)}
}

func (f *fakeFlagStore) ListFeatureFlags(orgID int64) ([]*orgs.FeatureFlag, error) {
	var flags []*orgs.FeatureFlag
	for flag, by := range f.grants[orgID] {
		flags = append(flags, &orgs.FeatureFlag{OrgID: orgID, Flag: flag, GrantedBy: by})
	}
	return flags, nil
}

func (f *fakeFlagStore) GrantFeatureFlag(orgID int64, flag, grantedBy string) error {
	if f.grants[orgID] == nil {
		f.grants[orgID] = make(map[string]string)
	}
	f.grants[orgID][flag] = grantedBy
	return nil
}

func (f *fakeFlagStore) RevokeFeatureFlag(orgID int64, flag string) (bool, error) {
	if _, ok := f.grants[orgID][flag]; !ok {
		return false, nil
	}
	delete(f.grants[orgID], flag)
	return true, nil
}

type apiEnv struct {
	server    *Server
	contracts *fakeContractService
	documents *fakeDocumentService
	lifecycle *fakeLifecycle
	enforcer  *fakeEnforcer
	resolver  *fakeResolver
	flags     *fakeFlagStore
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	env := &apiEnv{
		contracts: newFakeContractService(),
		documents: &fakeDocumentService{},
		lifecycle: &fakeLifecycle{},
		enforcer:  &fakeEnforcer{result: &enforcer.Result{}},
		resolver:  &fakeResolver{},
		flags:     newFakeFlagStore(),
	}
	env.server = NewServer(Config{
		Contracts:  env.contracts,
		Documents:  env.documents,
		Lifecycle:  env.lifecycle,
		Enforcer:   env.enforcer,
		Resolver:   env.resolver,
		Flags:      env.flags,
		AdminToken: testToken,
		Logger:     observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{}),
		RateLimit: &middleware.RateLimitConfig{
			RequestsPerWindow: 1000,
			WindowDuration:    time.Minute,
			BurstSize:         100,
		},
	})
	return env
}

func (env *apiEnv) request(t *testing.T, method, path string, body interface{}, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.ContentLength = int64(buf.Len())
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestAdminSurfaceRequiresToken(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.request(t, "POST", "/admin/enforcer/run", nil, false)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestCreateContract(t *testing.T) {
	env := newAPIEnv(t)

	body := map[string]interface{}{
		"org_id":        10,
		"billing_cycle": "monthly",
		"billing_day":   1,
		"start_date":    "2026-04-01T00:00:00Z",
		"seat_limit":    10,
		"package_ids":   []int64{1},
		"admin_name":    "Admin",
		"admin_email":   "admin@example.com",
	}
	rec := env.request(t, "POST", "/admin/contracts", body, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var created contracts.Contract
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if created.ContractNumber != "CT-TEST" {
		t.Errorf("contract_number = %v, want CT-TEST", created.ContractNumber)
	}
	if created.Status != contracts.StatusDraft {
		t.Errorf("status = %v, want draft", created.Status)
	}
}

func TestCreateContractValidationError(t *testing.T) {
	env := newAPIEnv(t)

	// missing org_id
	body := map[string]interface{}{
		"billing_cycle": "monthly",
		"billing_day":   1,
	}
	rec := env.request(t, "POST", "/admin/contracts", body, true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestGetContractNotFound(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.request(t, "GET", "/admin/contracts/999", nil, true)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGenerateEstimate(t *testing.T) {
	env := newAPIEnv(t)
	env.lifecycle.estimate = &documents.Document{
		ID:           1,
		Number:       "EST-ABCDEF123456",
		DocumentType: documents.TypeEstimate,
		Status:       documents.StatusEstimate,
	}

	rec := env.request(t, "POST", "/admin/contracts/1/estimate", nil, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var doc documents.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if doc.Number != "EST-ABCDEF123456" {
		t.Errorf("number = %v, want EST-ABCDEF123456", doc.Number)
	}
}

func TestGenerateEstimatePolicyViolation(t *testing.T) {
	env := newAPIEnv(t)
	env.lifecycle.err = &contracts.PolicyViolationError{Policy: "generate_estimate", Reason: "contract is not draft"}

	rec := env.request(t, "POST", "/admin/contracts/1/estimate", nil, true)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409: %s", rec.Code, rec.Body.String())
	}
}

func TestConvertEstimateLedgerOutage(t *testing.T) {
	env := newAPIEnv(t)
	env.lifecycle.err = &contracts.ExternalProviderError{Provider: "ledger", Op: "create_document"}

	rec := env.request(t, "POST", "/admin/contracts/1/estimate/convert", nil, true)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502: %s", rec.Code, rec.Body.String())
	}
}

func TestListDocumentsFilters(t *testing.T) {
	env := newAPIEnv(t)
	env.documents.docs = []*documents.Document{
		{ID: 3, ContractID: 1, DocumentType: documents.TypeInvoice, Status: documents.StatusSent},
		{ID: 2, ContractID: 1, DocumentType: documents.TypeInvoice, Status: documents.StatusPaid, IsInitial: true},
		{ID: 1, ContractID: 1, DocumentType: documents.TypeEstimate, Status: documents.StatusAccepted},
	}

	decode := func(rec *httptest.ResponseRecorder) []*documents.Document {
		var docs []*documents.Document
		if err := json.Unmarshal(rec.Body.Bytes(), &docs); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		return docs
	}

	rec := env.request(t, "GET", "/admin/contracts/1/documents", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if docs := decode(rec); len(docs) != 3 {
		t.Errorf("unfiltered listing returned %d documents, want 3", len(docs))
	}

	rec = env.request(t, "GET", "/admin/contracts/1/documents?type=invoice", nil, true)
	docs := decode(rec)
	if len(docs) != 2 {
		t.Fatalf("invoice listing returned %d documents, want 2", len(docs))
	}
	for _, d := range docs {
		if d.DocumentType != documents.TypeInvoice {
			t.Errorf("document %d has type %v, want invoice", d.ID, d.DocumentType)
		}
	}

	rec = env.request(t, "GET", "/admin/contracts/1/documents?limit=1", nil, true)
	if docs := decode(rec); len(docs) != 1 || docs[0].ID != 3 {
		t.Errorf("limited listing = %+v, want just the newest document", docs)
	}

	rec = env.request(t, "GET", "/admin/contracts/1/documents?type=receipt", nil, true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown type filter status = %d, want 400", rec.Code)
	}
}

func TestCompleteContract(t *testing.T) {
	env := newAPIEnv(t)
	env.lifecycle.account = &accounts.Account{ID: 7, Email: "admin@example.com"}

	rec := env.request(t, "POST", "/admin/contracts/1/complete", map[string]string{"password": "s3cret"}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var account accounts.Account
	if err := json.Unmarshal(rec.Body.Bytes(), &account); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if account.ID != 7 {
		t.Errorf("account ID = %d, want 7", account.ID)
	}
}

func TestCancelContract(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.request(t, "POST", "/admin/contracts/1/cancel", nil, true)
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}

func TestPlanChangeRequiresPackages(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.request(t, "POST", "/admin/contracts/1/plan-change", map[string]interface{}{
		"package_ids": []int64{},
		"seat_limit":  5,
	}, true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPlanChange(t *testing.T) {
	env := newAPIEnv(t)
	deadline := time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC)
	env.lifecycle.planRes = &lifecycle.PlanChangeResult{
		Preview:         billing.ProrationPreview{ProratedDifference: 14666},
		GraceDeadline:   &deadline,
		NewSeatLimit:    3,
		ActiveSeatCount: 5,
	}

	rec := env.request(t, "POST", "/admin/contracts/1/plan-change", map[string]interface{}{
		"package_ids": []int64{2},
		"seat_limit":  3,
	}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var result lifecycle.PlanChangeResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if result.Preview.ProratedDifference != 14666 {
		t.Errorf("prorated_difference = %d, want 14666", result.Preview.ProratedDifference)
	}
	if result.GraceDeadline == nil || !result.GraceDeadline.Equal(deadline) {
		t.Errorf("grace_deadline = %v, want %v", result.GraceDeadline, deadline)
	}
}

func TestRunEnforcerWithDate(t *testing.T) {
	env := newAPIEnv(t)
	env.enforcer.result = &enforcer.Result{Scanned: 3, Processed: 1, Deactivated: 5}

	rec := env.request(t, "POST", "/admin/enforcer/run", map[string]string{"date": "2026-05-11"}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	want := time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC)
	if !env.enforcer.lastToday.Equal(want) {
		t.Errorf("enforcer ran for %v, want %v", env.enforcer.lastToday, want)
	}

	var result enforcer.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if result.Deactivated != 5 {
		t.Errorf("deactivated = %d, want 5", result.Deactivated)
	}
}

func TestRunEnforcerRejectsBadDate(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.request(t, "POST", "/admin/enforcer/run", map[string]string{"date": "yesterday"}, true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRunBilling(t *testing.T) {
	env := newAPIEnv(t)
	env.lifecycle.runRes = &lifecycle.BillingRunResult{Due: 2, Issued: 2}

	rec := env.request(t, "POST", "/admin/billing/run", map[string]string{"date": "2026-05-01"}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	want := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	if !env.lifecycle.lastAsOf.Equal(want) {
		t.Errorf("billing ran as of %v, want %v", env.lifecycle.lastAsOf, want)
	}
}

func TestGetOrgFeatures(t *testing.T) {
	env := newAPIEnv(t)
	env.resolver.state = entitlement.NewFeatureState(42, []string{"asset_mgmt"}, []string{"beta_reports"})

	rec := env.request(t, "GET", "/orgs/42/features", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var state entitlement.FeatureState
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if state.OrgID != 42 {
		t.Errorf("org_id = %d, want 42", state.OrgID)
	}
	if !state.ActivePackages["asset_mgmt"] {
		t.Error("asset_mgmt package missing from snapshot")
	}
}

func TestGrantOrgFlag(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.request(t, "POST", "/admin/orgs/42/flags", map[string]string{"flag": "beta_reports"}, true)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204: %s", rec.Code, rec.Body.String())
	}
	if _, ok := env.flags.grants[42]["beta_reports"]; !ok {
		t.Error("flag was not granted")
	}
	if len(env.resolver.invalidated) != 1 || env.resolver.invalidated[0] != 42 {
		t.Errorf("invalidated = %v, want [42]", env.resolver.invalidated)
	}
}

func TestGrantOrgFlagRequiresKey(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.request(t, "POST", "/admin/orgs/42/flags", map[string]string{}, true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRevokeOrgFlag(t *testing.T) {
	env := newAPIEnv(t)
	env.flags.grants[42] = map[string]string{"beta_reports": "ops"}

	rec := env.request(t, "DELETE", "/admin/orgs/42/flags/beta_reports", nil, true)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204: %s", rec.Code, rec.Body.String())
	}
	if len(env.resolver.invalidated) != 1 {
		t.Errorf("invalidated = %v, want one entry", env.resolver.invalidated)
	}

	// Revoking again is a 404
	rec = env.request(t, "DELETE", "/admin/orgs/42/flags/beta_reports", nil, true)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListOrgFlags(t *testing.T) {
	env := newAPIEnv(t)
	env.flags.grants[42] = map[string]string{"beta_reports": "ops"}

	rec := env.request(t, "GET", "/admin/orgs/42/flags", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		OrgID int64               `json:"org_id"`
		Flags []*orgs.FeatureFlag `json:"flags"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Flags) != 1 || resp.Flags[0].Flag != "beta_reports" {
		t.Errorf("unexpected flags %+v", resp.Flags)
	}
}

func TestGetOrgFeaturesInvalidID(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.request(t, "GET", "/orgs/abc/features", nil, false)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
