package handler

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"shield-core/internal/handler/request"
	"shield-core/internal/handler/response"
	"shield-core/internal/pipeline"
	"shield-core/internal/service"
	"shield-core/pkg/amount"
	"shield-core/pkg/errno"
)

type TransferHandler struct {
	transfers *service.TransferService
	chainID   uint64
}

func NewTransferHandler(transfers *service.TransferService, chainID uint64) *TransferHandler {
	return &TransferHandler{transfers: transfers, chainID: chainID}
}

// CreateTransfer 发起转账
// @Summary 发起屏蔽池转账
// @Description 计算费用、生成证明并提交交易，relayer 不可用时自动降级自签
// @Tags Transfer
// @Accept json
// @Produce json
// @Param request body request.CreateTransferRequest true "Transfer Request"
// @Success 200 {object} response.Response
// @Router /api/v1/transfers [post]
func (h *TransferHandler) CreateTransfer(c *gin.Context) {
	var req request.CreateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	amt, err := amount.FromString(req.Amount)
	if err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	var token common.Address
	if req.TokenAddress != "" {
		if !common.IsHexAddress(req.TokenAddress) {
			response.Error(c, errno.ErrBind)
			return
		}
		token = common.HexToAddress(req.TokenAddress)
	}
	if !common.IsHexAddress(req.RecipientAddress) {
		response.Error(c, errno.ErrBind)
		return
	}

	res, err := h.transfers.SubmitTransfer(c.Request.Context(), &pipeline.Request{
		WalletID:         req.WalletID,
		ChainID:          h.chainID,
		TokenAddress:     token,
		RecipientAddress: common.HexToAddress(req.RecipientAddress),
		Amount:           amt,
		FeeTokenDecimals: req.FeeTokenDecimals,
	}, nil)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{
		"transaction_hash": res.TransactionHash,
		"used_relayer":     res.UsedRelayer,
		"privacy_level":    res.PrivacyLevel,
		"recipient_amount": res.Quote.RecipientAmount.String(),
		"relayer_fee":      res.Quote.RelayerFee.String(),
		"gas_fee":          res.Quote.GasReclamationFee.String(),
		"protocol_fee":     res.Quote.ProtocolFee.String(),
	})
}

// History 查询提交历史
// @Summary 查询钱包提交历史
// @Tags Transfer
// @Produce json
// @Param wallet_id query string true "Wallet ID"
// @Success 200 {object} response.Response
// @Router /api/v1/transfers [get]
func (h *TransferHandler) History(c *gin.Context) {
	var req request.HistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	rows, err := h.transfers.History(c.Request.Context(), req.WalletID, req.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rows)
}
