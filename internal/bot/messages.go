package bot

import "fmt"

const (
	msgAttendanceSaved  = "✅ Davomatingiz yozildi!"
	msgAttendanceFailed = "❌ Davomatingizni yozishda xatolik yuz berdi. Iltimos, keyinroq qayta urinib ko'ring."
	msgReportEmpty      = "⚠️ Hisobot uchun ma'lumotlar topilmadi."
	msgReportFailed     = "❌ Hisobotni yaratishda xatolik yuz berdi. Iltimos, keyinroq qayta urinib ko'ring."
	msgInternalError    = "Botda xatolik yuz berdi. Iltimos, keyinroq qayta urinib ko'ring."

	reportHeader    = "📊 O'quvchilar hisoboti:\n\n"
	reportSeparator = "------------------------\n"

	// noName stands in for users with neither a username nor a first name.
	noName = "NoName"
)

// mainMenu is the keyboard shown by /start.
var mainMenu = [][]string{
	{"/" + CmdRegister, "/" + CmdAttendance},
	{"/" + CmdPayment, "/" + CmdReport},
}

func welcome(firstName string) string {
	return fmt.Sprintf("Salom, %s! Siz botga muvaffaqiyatli kirdingiz.\n\n"+
		"Bo'limlardan birini tanlang:\n"+
		"• /royxat – o'quvchi ma'lumotlarini kiritish\n"+
		"• /davomat – o'quvchining darsga kelganini belgisi\n"+
		"• /tolov – to'lov sanasi va summasi yozish\n"+
		"• /hisobot – o'quvchilar hisoboti", firstName)
}
