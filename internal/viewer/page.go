package viewer

// indexPage is the whole browser UI: one tile per camera, fed over /ws.
const indexPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>camwatch</title>
<style>
body { background: #111; color: #ddd; font-family: monospace; margin: 0; }
#tiles { display: flex; flex-wrap: wrap; }
.tile { position: relative; width: 33vw; min-height: 25vw; background: #000; margin: 1px; }
.tile img { width: 100%; display: block; }
.tile pre { position: absolute; top: 0; left: 0; margin: 4px; white-space: pre; }
</style>
</head>
<body>
<div id="tiles"></div>
<script>
const JPEG = 2;
const tiles = {};

function tile(i) {
  if (!tiles[i]) {
    const div = document.createElement("div");
    div.className = "tile";
    div.innerHTML = "<img><pre></pre>";
    document.getElementById("tiles").appendChild(div);
    tiles[i] = { img: div.querySelector("img"), status: div.querySelector("pre"), url: null };
  }
  return tiles[i];
}

function connect() {
  const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
  ws.binaryType = "arraybuffer";
  ws.onmessage = (ev) => {
    if (typeof ev.data === "string") {
      const msg = JSON.parse(ev.data);
      const t = tile(msg.camera);
      if (msg.type === "status") t.status.textContent = msg.status;
      if (msg.type === "stop") t.img.removeAttribute("src");
      return;
    }
    const bytes = new Uint8Array(ev.data);
    if (bytes[1] !== JPEG) return;
    const t = tile(bytes[0]);
    if (t.url) URL.revokeObjectURL(t.url);
    t.url = URL.createObjectURL(new Blob([bytes.subarray(2)], { type: "image/jpeg" }));
    t.img.src = t.url;
  };
  ws.onclose = () => setTimeout(connect, 1000);
}
connect();
</script>
</body>
</html>
`
