package mailbox

// excludeTokens mark mailboxes whose content is not searched: drafts,
// trash, junk, outbox, archive and assorted non-mail folders, in several
// languages. Tokens are stored in normalized form.
var excludeTokens = []string{
	// drafts
	"draft", "drafts", "下書", "brouillon", "bozza", "entwurf", "borrador", "rascunho", "черновик",
	// trash
	"trash", "deleted", "bin", "ゴミ箱", "削除済", "corbeille", "papierkorb", "papelera", "cestino", "корзина",
	// junk
	"junk", "spam", "迷惑メール", "indesirable", "indésirable", "unerwünscht", "спам",
	// outbox
	"outbox", "送信トレイ", "posteausgang",
	// archive
	"archive", "アーカイブ", "archivo", "archivio", "archiv",
	// other folders
	"rss", "メモ", "notes", "tasks", "タスク", "journal", "会話の履歴", "同期の問題", "recovered",
}

// sentTokens mark sent-mail mailboxes.
var sentTokens = []string{
	"sent", "送信済み", "送信済みアイテム", "gesendet", "inviati", "enviados", "envoyes", "envoyés", "отправленные",
}

// specialUseExclude are IMAP special-use attributes (RFC 6154 and common
// extensions) that mark excluded mailboxes. They are matched before
// punctuation is stripped so the leading backslash is significant.
var specialUseExclude = []string{
	`\drafts`, `\junk`, `\trash`, `\deleted`, `\bin`, `\spam`, `\outbox`, `\archive`,
}

var specialUseSent = []string{`\sent`}
