package conversation

import "fmt"

// OtherSubject is the menu entry that asks for a free-text subject instead.
const OtherSubject = "Boshqa..."

// SubjectMenu is the subject keyboard, two per row, with OtherSubject last.
var SubjectMenu = [][]string{
	{"Matematika", "Fizika"},
	{"Ingliz tili", "Rus tili"},
	{"Kimyo", "Biologiya"},
	{"Informatika", "Tarix"},
	{"Ona tili", "Adabiyot"},
	{"Geografiya", "Chizmachilik"},
	{"Musiqa", "Jismoniy tarbiya"},
	{OtherSubject},
}

const (
	msgAskName = "O'quvchi ro'yxatga olish uchun ma'lumotlarni kiriting.\n" +
		"Avval, o'quvchining to'liq ismini kiriting:"
	msgAskPhone   = "O'quvchining telefon raqamini kiriting:"
	msgAskSubject = "📚 O'quvchi qaysi fan bo'yicha o'qiydi?\n" +
		"Quyidagi fanlardan birini tanlang yoki o'zingiz kiriting:"
	msgAskCustomSubject = "Iltimos, fan nomini o'zingiz kiriting:"
	msgStudentFailed    = "❌ O'quvchi ma'lumotlarini saqlashda xatolik yuz berdi. Iltimos, keyinroq qayta urinib ko'ring."

	msgAskStudentID  = "To'lov ma'lumotlarini kiritish uchun, avval o'quvchi ID raqamini kiriting:"
	msgAskDate       = "To'lov sanasini kiriting (kun.oy.yil formatida, masalan: 15.05.2025):"
	msgAskAmount     = "To'lov miqdorini so'm bilan kiriting (faqat raqamlar):"
	msgPaymentFailed = "❌ To'lov ma'lumotlarini saqlashda xatolik yuz berdi. Iltimos, keyinroq qayta urinib ko'ring."

	msgCancelled = "Jarayon bekor qilindi. Asosiy menyuga qaytish uchun /start buyrug'ini bosing."
)

func studentSaved(s *Session, id string) string {
	return fmt.Sprintf("✅ O'quvchi ma'lumotlari saqlandi:\n"+
		"ID: %s\n"+
		"Ism: %s\n"+
		"Telefon: %s\n"+
		"Fan: %s", id, s.Name, s.Phone, s.Subject)
}

func paymentSaved(s *Session) string {
	return fmt.Sprintf("✅ To'lov ma'lumotlari saqlandi:\n"+
		"O'quvchi ID: %s\n"+
		"Sana: %s\n"+
		"Miqdor: %s so'm", s.StudentID, s.PaymentDate, s.Amount)
}
