// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GridHive Contributors

package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/samber/oops"
)

// AuthorizationGateway answers ownership questions that live in the
// account service, not in this one.
type AuthorizationGateway interface {
	// IsValidAccountAndRole reports whether the user holds the role in
	// the account.
	IsValidAccountAndRole(ctx context.Context, userID, accountID, roleID string) (bool, error)
	// IsValidBoard reports whether the board belongs to the account.
	IsValidBoard(ctx context.Context, boardID, accountID string) (bool, error)
}

// AccountGateway is the HTTP client for the account service.
type AccountGateway struct {
	baseURL string
	client  *http.Client
}

// NewAccountGateway creates a gateway against the account service at
// baseURL.
func NewAccountGateway(baseURL string) *AccountGateway {
	return &AccountGateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

type validateAccountResponse struct {
	Valid bool `json:"valid"`
}

// IsValidAccountAndRole implements AuthorizationGateway.
func (g *AccountGateway) IsValidAccountAndRole(ctx context.Context, userID, accountID, roleID string) (bool, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s/validate?userId=%s&roleId=%s",
		g.baseURL, url.PathEscape(accountID), url.QueryEscape(userID), url.QueryEscape(roleID))
	return g.validate(ctx, endpoint)
}

// IsValidBoard implements AuthorizationGateway.
func (g *AccountGateway) IsValidBoard(ctx context.Context, boardID, accountID string) (bool, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s/boards/%s/validate",
		g.baseURL, url.PathEscape(accountID), url.PathEscape(boardID))
	return g.validate(ctx, endpoint)
}

func (g *AccountGateway) validate(ctx context.Context, endpoint string) (bool, error) {
	errb := oops.Code("AUTH_GATEWAY_FAILED").With("endpoint", endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, errb.Wrapf(err, "building account service request")
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return false, errb.Wrapf(err, "calling account service")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var body validateAccountResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return false, errb.Wrapf(err, "decoding account service response")
		}
		return body.Valid, nil
	case http.StatusNotFound, http.StatusForbidden:
		return false, nil
	default:
		return false, errb.Errorf("account service returned status %d", resp.StatusCode)
	}
}
