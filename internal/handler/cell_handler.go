package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"Heatmap-App/internal/domain/model"
)

// CellStatusReader セル状態の参照
type CellStatusReader interface {
	CellStatus(ctx context.Context, cellID string) (*model.CellStatusView, error)
}

// CellHandler はグリッドセル照会APIのハンドラー
type CellHandler struct {
	reader CellStatusReader
}

// NewCellHandler は新しいCellHandlerインスタンスを作成
func NewCellHandler(reader CellStatusReader) *CellHandler {
	return &CellHandler{reader: reader}
}

// GetCell はセルの中心・近傍・キャッシュ状態を返すエンドポイント
// GET /api/cells/:geohash
func (h *CellHandler) GetCell(c *gin.Context) {
	view, err := h.reader.CellStatus(c.Request.Context(), c.Param("geohash"))
	if err != nil {
		respondError(c, err, "セルの取得に失敗しました")
		return
	}
	c.JSON(http.StatusOK, view)
}
