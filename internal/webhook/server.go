package webhook

import (
    "encoding/json"
    "log/slog"
    "net/http"

    tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
    "github.com/labstack/echo/v4"
)

// New builds the webhook server. The route embeds the bot token, which is
// the only shared secret between Telegram and this process. Receipt is
// acknowledged immediately; the handler runs on its own goroutine so a slow
// store call never makes Telegram retry the delivery.
func New(token string, handle func(tgbotapi.Update)) *echo.Echo {
    e := echo.New()
    e.HideBanner = true
    e.HidePort = true

    e.POST("/bot"+token, func(c echo.Context) error {
        var upd tgbotapi.Update
        if err := json.NewDecoder(c.Request().Body).Decode(&upd); err != nil {
            slog.Warn("bad webhook payload", "err", err)
            return c.NoContent(http.StatusOK)
        }
        go handle(upd)
        return c.NoContent(http.StatusOK)
    })
    return e
}
