// Package myftp implements the control side of a minimal FTP-like
// file-retrieval protocol.
//
// # Overview
//
// A client opens one control connection, reads the server greeting,
// authenticates with USER/PASS and retrieves files with RETR. Every reply is
// a single line:
//
//	<ddd> <text>\r\n
//
// and every command is a single line:
//
//	USER alice\r\n
//	QUIT\r\n
//
// Commands are strictly sequential. Each command is paired with exactly one
// reply (see Client.Exchange), and each higher-level operation validates the
// reply code it expects:
//
//	greeting   -         220
//	login      USER      331, then PASS 230
//	retrieval  RETR      anything but 550, body, then 226
//	quit       QUIT      221
//
// # Basic Usage
//
//	client, err := myftp.Dial(ctx, "ftp.example.com:21",
//	    myftp.WithEcho(os.Stdout),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	if _, err := client.Greet(); err != nil {
//	    log.Fatal(err)
//	}
//	if err := client.Login("username", "password"); err != nil {
//	    log.Fatal(err)
//	}
//	if _, err := client.DownloadFile("report.txt", "report.txt"); err != nil {
//	    log.Fatal(err)
//	}
//	_ = client.Quit()
//
// # File Bodies
//
// There is no data connection. After a RETR that is not refused with 550,
// the server writes the file body on the control connection and marks its
// end with an end-of-data condition (a zero-byte read), followed by the
// 226 confirmation.
//
// # Error Handling
//
// Errors fall into two groups. A *ProtocolError reports a reply code other
// than the expected one; the current operation fails and the connection is
// still usable. ErrPeerClosed, ErrMalformedReply and transport errors end
// the session. IsFatal tells them apart:
//
//	if _, err := client.DownloadFile("missing.txt", "missing.txt"); err != nil {
//	    if errors.Is(err, myftp.ErrFileUnavailable) {
//	        fmt.Println("no such file")
//	    } else if myftp.IsFatal(err) {
//	        log.Fatal(err)
//	    }
//	}
package myftp
