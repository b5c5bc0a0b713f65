package pipeline

import "fmt"

type message int

const (
	msgUploading message = iota
	msgUploadFailed
	msgEnableFirst
	msgDeleted
	msgDeleteSucceeded
	msgDeleteFailed
	msgLocalUploaded
	msgLocalNotFound
	msgNetworkUploading
	msgNetworkUploaded
)

var catalog = map[string]map[message]string{
	"en": {
		msgUploading:        "🕔Uploading file...",
		msgUploadFailed:     "❌upload failed, check the logs",
		msgEnableFirst:      "Enable uploads and configure the server URL and upload API first",
		msgDeleted:          "%s count: %d",
		msgDeleteSucceeded:  "Deleted",
		msgDeleteFailed:     "Delete failed",
		msgLocalUploaded:    "Local image uploaded: %s",
		msgLocalNotFound:    "Local image not found: %s",
		msgNetworkUploading: "Uploading network image: %s",
		msgNetworkUploaded:  "Network image uploaded: %s",
	},
	"zh": {
		msgUploading:        "🕔正在上传文件...",
		msgUploadFailed:     "❌上传失败，请检查日志",
		msgEnableFirst:      "请先启用功能并且配置好服务器地址和上传接口",
		msgDeleted:          "%s 数量: %d",
		msgDeleteSucceeded:  "删除成功",
		msgDeleteFailed:     "删除失败",
		msgLocalUploaded:    "本地图片上传成功: %s",
		msgLocalNotFound:    "未找到本地图片: %s",
		msgNetworkUploading: "正在上传网络图片: %s",
		msgNetworkUploaded:  "网络图片上传成功: %s",
	},
}

// localize formats m in lang, falling back to English
func localize(lang string, m message, args ...interface{}) string {
	texts, ok := catalog[lang]
	if !ok {
		texts = catalog["en"]
	}
	format, ok := texts[m]
	if !ok {
		format = catalog["en"][m]
	}
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// PlaceholderText returns the in-document token shown while job id uploads
func PlaceholderText(lang, id string) string {
	return "![" + localize(lang, msgUploading) + id + "]()"
}

// FailureMarker returns the text that replaces the placeholder of a failed job
func FailureMarker(lang string) string {
	return localize(lang, msgUploadFailed)
}
