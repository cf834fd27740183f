package api

import (
	"net/http"

	"github.com/genbaworks/tally/pkg/contracts"
	"github.com/genbaworks/tally/pkg/documents"
	"github.com/genbaworks/tally/pkg/httputil"
)

// createContract registers a new draft contract
func (s *Server) createContract(w http.ResponseWriter, r *http.Request) {
	var req contracts.CreateContractRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	contract, err := s.contracts.CreateContract(&req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.logger.WithFields(map[string]interface{}{
		"contract_id":     contract.ID,
		"contract_number": contract.ContractNumber,
		"org_id":          contract.OrgID,
	}).Info("contract created")

	httputil.WriteJSONOrError(w, http.StatusCreated, contract, "failed to encode contract")
}

// getContract returns a contract by ID
func (s *Server) getContract(w http.ResponseWriter, r *http.Request) {
	contractID, ok := httputil.ParsePathInt64OrError(w, r, "contractID")
	if !ok {
		return
	}

	contract, err := s.contracts.GetContract(contractID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	httputil.WriteJSONOrError(w, http.StatusOK, contract, "failed to encode contract")
}

// completeContract runs the activation saga for a draft contract
func (s *Server) completeContract(w http.ResponseWriter, r *http.Request) {
	contractID, ok := httputil.ParsePathInt64OrError(w, r, "contractID")
	if !ok {
		return
	}

	var req completeContractRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	account, err := s.lifecycle.CompleteContract(r.Context(), contractID, req.Password, actor(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	httputil.WriteJSONOrError(w, http.StatusOK, account, "failed to encode account")
}

// cancelContract cancels a contract and revokes entitlements
func (s *Server) cancelContract(w http.ResponseWriter, r *http.Request) {
	contractID, ok := httputil.ParsePathInt64OrError(w, r, "contractID")
	if !ok {
		return
	}

	if err := s.lifecycle.CancelContract(r.Context(), contractID, actor(r)); err != nil {
		s.writeDomainError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

// generateEstimate issues the initial estimate for a draft contract
func (s *Server) generateEstimate(w http.ResponseWriter, r *http.Request) {
	contractID, ok := httputil.ParsePathInt64OrError(w, r, "contractID")
	if !ok {
		return
	}

	doc, err := s.lifecycle.GenerateEstimate(r.Context(), contractID, actor(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	httputil.WriteJSONOrError(w, http.StatusCreated, doc, "failed to encode document")
}

// markEstimateSent transitions the open estimate to sent
func (s *Server) markEstimateSent(w http.ResponseWriter, r *http.Request) {
	contractID, ok := httputil.ParsePathInt64OrError(w, r, "contractID")
	if !ok {
		return
	}

	doc, err := s.lifecycle.MarkEstimateSent(r.Context(), contractID, actor(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	httputil.WriteJSONOrError(w, http.StatusOK, doc, "failed to encode document")
}

// rejectEstimate marks the sent estimate as rejected
func (s *Server) rejectEstimate(w http.ResponseWriter, r *http.Request) {
	contractID, ok := httputil.ParsePathInt64OrError(w, r, "contractID")
	if !ok {
		return
	}

	if err := s.lifecycle.RejectEstimate(r.Context(), contractID, actor(r)); err != nil {
		s.writeDomainError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

// regenerateEstimate rejects the current estimate and issues a fresh one
func (s *Server) regenerateEstimate(w http.ResponseWriter, r *http.Request) {
	contractID, ok := httputil.ParsePathInt64OrError(w, r, "contractID")
	if !ok {
		return
	}

	doc, err := s.lifecycle.RegenerateEstimate(r.Context(), contractID, actor(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	httputil.WriteJSONOrError(w, http.StatusCreated, doc, "failed to encode document")
}

// convertEstimate accepts the sent estimate and issues the invoice
func (s *Server) convertEstimate(w http.ResponseWriter, r *http.Request) {
	contractID, ok := httputil.ParsePathInt64OrError(w, r, "contractID")
	if !ok {
		return
	}

	doc, err := s.lifecycle.ConvertEstimateToInvoice(r.Context(), contractID, actor(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	httputil.WriteJSONOrError(w, http.StatusCreated, doc, "failed to encode document")
}

// listDocuments returns the billing documents for a contract, optionally
// filtered by ?type=estimate|invoice and truncated by ?limit=
func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	contractID, ok := httputil.ParsePathInt64OrError(w, r, "contractID")
	if !ok {
		return
	}

	docType := httputil.ParseQueryString(r, "type", "")
	if docType != "" && docType != string(documents.TypeEstimate) && docType != string(documents.TypeInvoice) {
		httputil.WriteValidationError(w, "type must be estimate or invoice")
		return
	}
	limit, err := httputil.ParseQueryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	docs, err := s.documents.ListByContract(r.Context(), contractID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	if docType != "" {
		filtered := docs[:0]
		for _, d := range docs {
			if string(d.DocumentType) == docType {
				filtered = append(filtered, d)
			}
		}
		docs = filtered
	}
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}

	httputil.WriteJSONOrError(w, http.StatusOK, docs, "failed to encode documents")
}

// recordInvoicePaid marks a sent invoice as paid
func (s *Server) recordInvoicePaid(w http.ResponseWriter, r *http.Request) {
	documentID, ok := httputil.ParsePathInt64OrError(w, r, "documentID")
	if !ok {
		return
	}

	if err := s.lifecycle.RecordInvoicePaid(r.Context(), documentID, actor(r)); err != nil {
		s.writeDomainError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

// previewPlanChange computes the proration diff without mutating anything
func (s *Server) previewPlanChange(w http.ResponseWriter, r *http.Request) {
	contractID, ok := httputil.ParsePathInt64OrError(w, r, "contractID")
	if !ok {
		return
	}

	var req planChangeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.PackageIDs) == 0 {
		httputil.WriteValidationError(w, "package_ids is required")
		return
	}

	preview, err := s.lifecycle.PreviewPlanChange(r.Context(), contractID, req.PackageIDs)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	httputil.WriteJSONOrError(w, http.StatusOK, preview, "failed to encode preview")
}

// changePlan applies a mid-cycle plan change
func (s *Server) changePlan(w http.ResponseWriter, r *http.Request) {
	contractID, ok := httputil.ParsePathInt64OrError(w, r, "contractID")
	if !ok {
		return
	}

	var req planChangeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.PackageIDs) == 0 {
		httputil.WriteValidationError(w, "package_ids is required")
		return
	}
	if req.SeatLimit < 0 {
		httputil.WriteValidationError(w, "seat_limit must not be negative")
		return
	}

	result, err := s.lifecycle.ChangePlan(r.Context(), contractID, req.PackageIDs, req.SeatLimit, actor(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	httputil.WriteJSONOrError(w, http.StatusOK, result, "failed to encode plan change result")
}
