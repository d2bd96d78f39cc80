// internal/storage/models/user.go
package models

// User is a Telegram user tracking positions through the bot.
type User struct {
	BaseModel
	TelegramID int64  `gorm:"uniqueIndex;not null"`
	ChatID     int64  `gorm:"not null"`
	PublicKey  string `gorm:"not null;type:varchar(44)"`
}
