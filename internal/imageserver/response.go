package imageserver

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.lorenzomilicia.dev/imgup/internal/uploader"
)

// Application codes of the upload response. Zero means success.
const (
	CodeOK = iota
	CodeBadRequest
	CodeUnsupported
	CodeStorage
	CodeRateLimited
)

// uploadOK answers a stored upload with its location
func uploadOK(c *gin.Context, url string) {
	c.JSON(200, uploader.UploadResponse{
		Code: CodeOK,
		Data: &uploader.UploadData{URL: url},
	})
}

// uploadFailed answers a rejected upload
func uploadFailed(c *gin.Context, status, code int, msg string) {
	log.Warn().Int("status", status).Int("code", code).Str("msg", msg).Msg("Upload rejected")
	c.JSON(status, uploader.UploadResponse{Code: code, Msg: msg})
}

// deleteDone answers a delete batch
func deleteDone(c *gin.Context, status int, success bool, msg string) {
	if !success {
		log.Warn().Int("status", status).Str("msg", msg).Msg("Delete rejected")
	}
	c.JSON(status, uploader.DeleteResponse{Success: success, Msg: msg})
}
