package handler

// indexPage is the static info page served on GET /.
const indexPage = `<!DOCTYPE html>
<html lang="uz">
<head>
    <meta charset="utf-8">
    <title>Telegram Bot Server</title>
    <link rel="stylesheet" href="https://cdn.replit.com/agent/bootstrap-agent-dark-theme.min.css">
</head>
<body>
    <div class="container mt-5">
        <div class="card">
            <div class="card-header">
                <h3>O'quv Davomat Bot Server</h3>
            </div>
            <div class="card-body">
                <h5 class="card-title">Bot holati</h5>
                <p class="card-text">Telegram bot serveri ishlayapti. Iltimos, Telegram orqali botni ishlatishingiz mumkin.</p>
                <hr>
                <h5>Ma'lumot:</h5>
                <ul>
                    <li><strong>Bot:</strong> Telegram ichida @oquv_davomat_bot (yoki manzilni botdan tekshiring)</li>
                    <li><strong>Buyruqlar:</strong>
                        <ul>
                            <li><code>/start</code> - botni boshlash va asosiy menyu</li>
                            <li><code>/davomat</code> - o'quvchining darsga kelganini belgilash</li>
                            <li><code>/royxat</code> - yangi o'quvchi ma'lumotlarini kiritish</li>
                            <li><code>/tolov</code> - to'lov ma'lumotlarini kiritish</li>
                            <li><code>/hisobot</code> - o'quvchilar bo'yicha hisobot olish</li>
                            <li><code>/cancel</code> - joriy jarayonni bekor qilish</li>
                        </ul>
                    </li>
                </ul>
            </div>
            <div class="card-footer text-muted">
                Davomat ma'lumotlari jadvallarga saqlanadi
            </div>
        </div>
    </div>
</body>
</html>
`
