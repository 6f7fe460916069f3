package browser

import "html/template"

type pageData struct {
	ID        string
	Container string
	ScriptURL string
	SiteKey   string
	Action    string
	Theme     string
	Size      string
}

var pageTmpl = template.Must(template.New("widget").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>lingogate verification</title>
<script src="{{.ScriptURL}}" async defer></script>
<style>
body { font-family: sans-serif; display: flex; flex-direction: column; align-items: center; margin-top: 4em; }
</style>
</head>
<body>
<div id="{{.Container}}"></div>
<p id="status">Complete the challenge to continue translating.</p>
<script>
const base = "/widget/{{.ID}}";
let handle = null;
let seen = 0;

function send(event, token) {
  fetch(base + "/event", {
    method: "POST",
    headers: { "Content-Type": "application/json" },
    body: JSON.stringify({ event: event, token: token || "" }),
  });
  if (event === "success") {
    document.getElementById("status").textContent = "Verified. You can return to lingogate.";
  }
}

function render() {
  handle = turnstile.render("#{{.Container}}", {
    sitekey: "{{.SiteKey}}",
    action: "{{.Action}}",
    theme: "{{.Theme}}",
    size: "{{.Size}}",
    callback: (t) => send("success", t),
    "expired-callback": () => send("expired"),
    "error-callback": () => send("error"),
  });
}

async function poll() {
  try {
    const r = await fetch(base + "/state", { cache: "no-store" });
    if (r.status === 404) {
      document.getElementById("status").textContent = "This challenge is closed.";
      return;
    }
    const s = await r.json();
    if (s.reset > seen) {
      seen = s.reset;
      document.getElementById("status").textContent = "Complete the challenge to continue translating.";
      turnstile.reset(handle);
    }
  } catch (e) {}
  setTimeout(poll, 1000);
}

function start() {
  if (!window.turnstile) {
    setTimeout(start, 100);
    return;
  }
  render();
  poll();
}
start();
</script>
</body>
</html>
`))
