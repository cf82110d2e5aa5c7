package main

import (
	"html/template"
)

type pageArgs struct {
	User     string
	SignedIn bool
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<title>pingchat</title>
<style type="text/css">
body { font-family: sans-serif; margin: 0.5em; }
#messages { list-style: none; padding: 0; }
</style>
</head>
<body>
<header>
<h3>pingchat</h3>
{{if .SignedIn}}
<p>Signed in as {{.User}}</p>
<p>Status: <span id="status">disconnected</span></p>
{{else}}
<p>Not yet signed in. Please enter your name below and submit.</p>
{{end}}
</header>
{{if .SignedIn}}
<form id="form">
    <input type="text" id="message" size="64"/>
    <input type="submit" value="Send" />
</form>
<ul id="messages"></ul>
<script type="text/javascript">
(function() {
    var status = document.getElementById("status");
    var list = document.getElementById("messages");
    var input = document.getElementById("message");

    function append(msg) {
        var li = document.createElement("li");
        li.textContent = "[" + msg.ts + "] " + msg.user + ": " + msg.body;
        list.appendChild(li);
    }

    document.getElementById("form").addEventListener("submit", function(e) {
        e.preventDefault();
        if (!input.value) {
            return;
        }
        fetch("/send", {method: "POST", body: JSON.stringify({body: input.value})})
            .then(function(res) { return res.ok ? null : res.text(); })
            .then(function(err) { if (err) { alert(err); } });
        input.value = "";
    });

    function listen() {
        var decoder = new TextDecoder();
        var buffer = "";
        fetch("/listen").then(function(res) {
            status.textContent = "connected";
            var reader = res.body.getReader();
            function pump() {
                return reader.read().then(function(chunk) {
                    if (chunk.done) {
                        throw new Error("stream ended");
                    }
                    buffer += decoder.decode(chunk.value, {stream: true});
                    var lines = buffer.split("\n");
                    buffer = lines.pop();
                    lines.forEach(function(line) {
                        if (!line) {
                            return;
                        }
                        var record = JSON.parse(line);
                        if (record.kind === "msg") {
                            append(record.data);
                        }
                    });
                    return pump();
                });
            }
            return pump();
        }).catch(function() {
            status.textContent = "disconnected";
            setTimeout(listen, 1000);
        });
    }
    listen();
    input.focus();
})();
</script>
{{else}}
<form action="/signin" method="POST">
    <input type="text" id="name" name="name" />
    <input type="submit" value="Join" />
</form>
{{end}}
</body>
</html>
`))
