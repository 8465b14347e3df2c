package telegram

import (
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const helpText = "Пришли фото или картинку файлом — верну распознанный текст.\n" +
	"Несколько фото одним альбомом склеиваются в одну страницу.\n" +
	"Команды:\n" +
	"/lang [язык] — язык распознавания\n" +
	"/engine [движок] — движок OCR\n" +
	"/health — проверка"

func (r *Router) HandleCommand(msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	args := strings.Fields(msg.CommandArguments())
	switch msg.Command() {
	case "start", "help":
		r.send(cid, helpText)
	case "health":
		text := "✅ OK"
		if r.StoreName != "" {
			text += " (лимиты: " + r.StoreName + ")"
		}
		r.send(cid, text)
	case "lang":
		r.handleLang(cid, args)
	case "engine":
		r.handleEngine(cid, args)
	default:
		r.send(cid, "Неизвестная команда. /help")
	}
}

func (r *Router) handleLang(chatID int64, args []string) {
	if len(args) == 0 {
		r.send(chatID, "Текущий язык: "+r.chatLanguage(chatID).String()+"\nДоступны: "+r.languageList()+"\nИспользование: /lang rus+eng")
		return
	}
	lang, err := r.Languages.Resolve(args[0])
	if err != nil {
		r.send(chatID, "Неизвестный язык. Доступны: "+r.languageList())
		return
	}
	r.state.setLanguage(chatID, lang)
	r.send(chatID, "✅ Язык: "+lang.String())
}

func (r *Router) handleEngine(chatID int64, args []string) {
	if len(args) == 0 {
		r.send(chatID, "Текущий движок: "+r.chatEngine(chatID)+"\nДоступны: "+r.engineList()+"\nИспользование: /engine tesseract")
		return
	}
	name := strings.ToLower(args[0])
	if _, ok := r.Engines[name]; !ok {
		r.send(chatID, "Неизвестный движок. Доступны: "+r.engineList())
		return
	}
	r.state.setEngine(chatID, name)
	r.send(chatID, "✅ Движок: "+name)
}

func (r *Router) languageList() string {
	tags := r.Languages.List()
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.String()
	}
	return strings.Join(out, ", ")
}

func (r *Router) engineList() string {
	names := make([]string, 0, len(r.Engines))
	for n := range r.Engines {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, " | ")
}
