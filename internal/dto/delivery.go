package dto

// DeliveryItem references one processed file to include in the archive.
// BufferID takes priority over ServerName when locating stored bytes.
type DeliveryItem struct {
	ServerName string `json:"serverName"`
	BufferID   string `json:"bufferId,omitempty"`
	PreviewURL string `json:"previewUrl,omitempty"`
}

// DeliveryRequest asks for selected results to be zipped and forwarded to the
// messaging bot.
type DeliveryRequest struct {
	Sku   string         `json:"sku"`
	Items []DeliveryItem `json:"items"`
	Links []string       `json:"links"`
}

// DeliveryResponse confirms archive delivery.
type DeliveryResponse struct {
	OK                bool   `json:"ok"`
	ZipFileName       string `json:"zipFileName"`
	TelegramMessageID int64  `json:"telegramMessageId"`
}
