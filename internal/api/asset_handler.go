package api

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"certforge/internal/storage"
)

// AssetHandler 负责经销商资产（模板背景图、Logo）的上传与访问。
type AssetHandler struct {
	Storage *storage.Client
	Logger  *slog.Logger
}

// NewAssetHandler 返回 AssetHandler 实例。
func NewAssetHandler(storageClient *storage.Client, logger *slog.Logger) *AssetHandler {
	return &AssetHandler{
		Storage: storageClient,
		Logger:  logger,
	}
}

// UploadAsset 处理受保护的图片上传。上传前解码校验确实是图片，
// 并返回原始像素尺寸，前端用它初始化画布大小。
func (h *AssetHandler) UploadAsset(c *gin.Context) {
	dealerID, ok := dealerIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}

	fileReader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return
	}
	img, format, err := image.Decode(fileReader)
	fileReader.Close()
	if err != nil {
		BadRequest(c, "file is not a valid image")
		return
	}
	bounds := img.Bounds()

	fileReader, err = file.Open()
	if err != nil {
		Internal(c, "failed to reopen file")
		return
	}
	defer fileReader.Close()

	objectKey := fmt.Sprintf("dealer-assets/%d/%s.%s", dealerID, uuid.NewString(), format)
	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if _, err := h.Storage.UploadFile(c.Request.Context(), objectKey, fileReader, file.Size, contentType); err != nil {
		h.Logger.Error("upload file", slog.String("error", err.Error()))
		Internal(c, "failed to upload file")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"objectKey": objectKey,
		"width":     bounds.Dx(),
		"height":    bounds.Dy(),
	})
}

// GetAssetURL 返回资产的临时预签名 URL。
func (h *AssetHandler) GetAssetURL(c *gin.Context) {
	dealerID, ok := dealerIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	objectKey := c.Query("key")
	if !isValidDealerAssetObjectKey(dealerID, objectKey) {
		Forbidden(c, "access denied")
		return
	}

	signedURL, err := h.Storage.GeneratePresignedURL(c.Request.Context(), objectKey, 15*time.Minute)
	if err != nil {
		h.Logger.Error("generate presigned url", slog.String("error", err.Error()))
		Internal(c, "failed to generate url")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": signedURL})
}
