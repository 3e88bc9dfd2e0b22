package http

import "net/http"

// indexHTML 简易输入表单页
const indexHTML = `<!DOCTYPE html>
<html lang="zh-CN">
<head>
<meta charset="utf-8">
<title>躯干脂肪比例预测</title>
</head>
<body>
<h1>躯干脂肪比例预测</h1>
<form id="predict-form">
  <label>性别
    <select name="gender">
      <option value="male">男</option>
      <option value="female">女</option>
    </select>
  </label><br>
  <label>腰围 (cm) <input name="waist" type="number" step="0.1" required></label><br>
  <label>身高 (cm) <input name="height" type="number" step="0.1" required></label><br>
  <label>体重 (kg) <input name="weight" type="number" step="0.1" required></label><br>
  <label>年龄 <input name="age" type="number" required></label><br>
  <button type="submit">预测</button>
</form>
<pre id="result"></pre>
<script>
document.getElementById('predict-form').addEventListener('submit', async function (e) {
  e.preventDefault();
  const form = new FormData(e.target);
  const body = Object.fromEntries(form.entries());
  const resp = await fetch('/predict', {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify(body)
  });
  document.getElementById('result').textContent = JSON.stringify(await resp.json(), null, 2);
});
</script>
</body>
</html>
`

func handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexHTML))
}
