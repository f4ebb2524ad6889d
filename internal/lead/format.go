package lead

import (
	"strings"
	"time"
)

// SiteZone is the site's local time: a fixed UTC+5 offset, no DST.
var SiteZone = time.FixedZone("UTC+5", 5*60*60)

const timestampLayout = "02.01.2006 15:04"

// Now is the clock used by callers that stamp notifications.
var Now = func() time.Time { return time.Now().UTC() }

// Timestamp renders t in SiteZone as DD.MM.YYYY HH:MM.
func Timestamp(t time.Time) string {
	return t.In(SiteZone).Format(timestampLayout)
}

// FormatNotification renders the Markdown message posted to the operators'
// chat. Field order is fixed and the cargo line is present even when empty.
func FormatNotification(sub Submission, siteLabel string, at time.Time) string {
	var b strings.Builder
	b.WriteString("🚚 *Новая заявка на грузоперевозку*\n\n")
	b.WriteString("👤 *Имя:* " + sub.Name + "\n")
	b.WriteString("📞 *Телефон:* " + sub.Phone + "\n")
	b.WriteString("📦 *Описание груза:* " + sub.Message + "\n")
	b.WriteString("⏰ *Время заявки:* " + Timestamp(at) + "\n")
	b.WriteString("\n📍 *Источник:* Сайт " + siteLabel)
	return b.String()
}
