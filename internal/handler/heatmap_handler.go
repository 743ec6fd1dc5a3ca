package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"Heatmap-App/internal/domain/model"
	"Heatmap-App/internal/usecase"
)

// HeatmapHandler はヒートマップスキャンAPIのハンドラー
type HeatmapHandler struct {
	scanUseCase usecase.HeatmapScanUseCase
	validate    *validator.Validate
}

// NewHeatmapHandler は新しいHeatmapHandlerインスタンスを作成
func NewHeatmapHandler(scanUseCase usecase.HeatmapScanUseCase) *HeatmapHandler {
	return &HeatmapHandler{
		scanUseCase: scanUseCase,
		validate:    newValidator(),
	}
}

// PostScan は矩形領域のスコアを計算するエンドポイント
// POST /api/heatmap/scan
func (h *HeatmapHandler) PostScan(c *gin.Context) {
	var req model.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "リクエストの形式が正しくありません", err)
		return
	}
	if err := validateStruct(h.validate, &req); err != nil {
		respondError(c, err, "ヒートマップの計算に失敗しました")
		return
	}

	response, err := h.scanUseCase.Scan(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "ヒートマップの計算に失敗しました")
		return
	}
	c.JSON(http.StatusOK, response)
}
