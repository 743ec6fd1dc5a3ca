package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"Heatmap-App/internal/domain/model"
	"Heatmap-App/internal/usecase"
)

// AmenityHandler は施設検索APIのハンドラー
type AmenityHandler struct {
	queryUseCase usecase.AmenityQueryUseCase
	validate     *validator.Validate
}

// NewAmenityHandler は新しいAmenityHandlerインスタンスを作成
func NewAmenityHandler(queryUseCase usecase.AmenityQueryUseCase) *AmenityHandler {
	return &AmenityHandler{
		queryUseCase: queryUseCase,
		validate:     newValidator(),
	}
}

// PostQuery は指定地点周辺の施設を取得するエンドポイント
// POST /api/places/query
func (h *AmenityHandler) PostQuery(c *gin.Context) {
	var req model.PlacesQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "リクエストの形式が正しくありません", err)
		return
	}
	h.query(c, &req)
}

// GetQuery はクエリパラメータ版の施設検索
// GET /api/places/query?lat=35.68&lng=139.76&radius=500&types=cafe,park
func (h *AmenityHandler) GetQuery(c *gin.Context) {
	req, err := parseQueryParams(c)
	if err != nil {
		respondBadRequest(c, "クエリパラメータが正しくありません", err)
		return
	}
	h.query(c, req)
}

func (h *AmenityHandler) query(c *gin.Context, req *model.PlacesQueryRequest) {
	if err := validateStruct(h.validate, req); err != nil {
		respondError(c, err, "施設検索に失敗しました")
		return
	}

	response, err := h.queryUseCase.Query(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "施設検索に失敗しました")
		return
	}
	c.JSON(http.StatusOK, response)
}

// parseQueryParams 数値として解釈できない値は入力エラー
func parseQueryParams(c *gin.Context) (*model.PlacesQueryRequest, error) {
	req := &model.PlacesQueryRequest{}

	if raw := c.Query("lat"); raw != "" {
		lat, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &model.ValidationError{Field: "lat", Message: "数値で指定してください"}
		}
		req.Lat = &lat
	}
	if raw := c.Query("lng"); raw != "" {
		lng, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &model.ValidationError{Field: "lng", Message: "数値で指定してください"}
		}
		req.Lng = &lng
	}

	radius := c.Query("radius")
	if radius == "" {
		radius = c.Query("radius_meters")
	}
	if radius != "" {
		r, err := strconv.ParseFloat(radius, 64)
		if err != nil {
			return nil, &model.ValidationError{Field: "radius", Message: "数値で指定してください"}
		}
		req.RadiusMeters = r
	}

	for _, t := range strings.Split(c.Query("types"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			req.Types = append(req.Types, t)
		}
	}
	return req, nil
}
