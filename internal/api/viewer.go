package api

import (
	"net/http"
)

// handleIndex serves a minimal viewer for the stream with a hover menu for
// snapshots and brightness
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	src := "/stream"
	if !s.routes.deps.StreamEnabled {
		src = "/snapshot"
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>CamStreamer</title>
    <style>
        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }
        body {
            background: #000;
            overflow: hidden;
            display: flex;
            justify-content: center;
            align-items: center;
            min-height: 100vh;
        }
        img {
            width: 100vw;
            height: 100vh;
            object-fit: contain;
            display: block;
            background: #000;
        }
        .nav-trigger {
            position: fixed;
            bottom: 0;
            left: 0;
            width: 100%;
            height: 100px;
            z-index: 900;
        }
        .nav-menu {
            position: fixed;
            bottom: 16px;
            left: 16px;
            display: flex;
            align-items: center;
            gap: 8px;
            opacity: 0;
            transform: translateY(10px);
            transition: opacity 0.2s ease, transform 0.2s ease;
            pointer-events: none;
            z-index: 1000;
        }
        .nav-trigger:hover ~ .nav-menu,
        .nav-menu:hover {
            opacity: 1;
            transform: translateY(0);
            pointer-events: auto;
        }
        .nav-link {
            display: flex;
            align-items: center;
            gap: 6px;
            padding: 8px 14px;
            background: rgba(40, 40, 40, 0.9);
            color: #ccc;
            text-decoration: none;
            border-radius: 20px;
            font-family: system-ui, -apple-system, sans-serif;
            font-size: 13px;
        }
        .nav-link:hover {
            background: rgba(60, 60, 60, 0.95);
            color: #fff;
        }
        input[type=range] {
            accent-color: #4682b4;
        }
    </style>
</head>
<body>
    <img id="view" src="` + src + `" alt="CamStreamer">
    <div class="nav-trigger"></div>
    <div class="nav-menu">
        <a href="/snapshot?download=1" class="nav-link">Snapshot</a>
        <a href="/api/status" class="nav-link">Status</a>
        <label class="nav-link">Brightness
            <input type="range" min="0" max="10" value="5" onchange="setBrightness(this.value)">
        </label>
    </div>
    <script>
        function setBrightness(v) {
            fetch('/control?brightness=' + v).catch(console.error);
        }
    </script>
</body>
</html>`))
}
