package grpc

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/streamflow/internal/common"
	"github.com/dmitrijs2005/streamflow/internal/logging"
	"github.com/dmitrijs2005/streamflow/internal/rpc"
	"github.com/dmitrijs2005/streamflow/internal/server/authz"
	"github.com/dmitrijs2005/streamflow/internal/server/grpc/grpcerr"
)

// RevocationHandler implements rpc.RevocationServiceServer over the local
// revocation ledger.
type RevocationHandler struct {
	ledger authz.RevocationChecker
	logger logging.Logger
}

func NewRevocationHandler(ledger authz.RevocationChecker, l logging.Logger) *RevocationHandler {
	return &RevocationHandler{ledger: ledger, logger: l.With("module", "revocation_handler")}
}

func (h *RevocationHandler) CheckToken(ctx context.Context, req *rpc.CheckTokenRequest) (*rpc.CheckTokenResponse, error) {
	hash := strings.TrimSpace(req.TokenHash)
	if hash == "" {
		return nil, grpcerr.FromError(fmt.Errorf("%w: token hash is required", common.ErrInvalidArgument))
	}

	revoked, err := h.ledger.IsRevoked(ctx, hash)
	if err != nil {
		h.logger.Error(ctx, "revocation lookup failed", "token_hash", hash, "error", err)
		return nil, grpcerr.FromError(fmt.Errorf("%w: %v", common.ErrUnavailable, err))
	}
	return &rpc.CheckTokenResponse{Revoked: revoked}, nil
}
