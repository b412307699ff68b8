// Package queue contains the background consumer that listens to the
// user.emails queue and delivers each message through the configured
// mail driver.
package queue

import (
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "net/smtp"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/team-workspace/internal/config"
)

const emailQueueName = "user.emails"

// StartEmailConsumer connects to RabbitMQ, declares the user.emails
// queue (durable), and starts consuming messages. Each message is
// delivered via SMTP or, with the "log" driver, appended to
// logs/mail.log in a single-line format. The function runs a reconnect
// loop; it keeps running through broker outages and logs any
// processing errors while rejecting the offending message so the
// server continues operating.
func StartEmailConsumer(cfg config.Config) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(cfg.AMQPURL)
        if err != nil {
            log.Printf("mail-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            time.Sleep(backoff)
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        if err := consumeLoop(conn, cfg); err != nil {
            log.Printf("mail-consumer: consume loop ended: %v; reconnecting", err)
            // Sleep briefly before reconnect
            time.Sleep(2 * time.Second)
            continue
        }
    }
}

func consumeLoop(conn *amqp.Connection, cfg config.Config) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Printf("mail-consumer: set QoS failed: %v", err)
    }

    _, err = ch.QueueDeclare(emailQueueName, true, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }

    msgs, err := ch.Consume(emailQueueName, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for d := range msgs {
        if err := handleMessage(cfg, d.Body); err != nil {
            log.Printf("mail-consumer: handle message failed: %v", err)
            _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
            continue
        }
        _ = d.Ack(false)
    }
    return errors.New("deliveries channel closed")
}

func handleMessage(cfg config.Config, body []byte) error {
    var ev EmailEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.To == "" {
        return errors.New("message has no recipient")
    }
    if cfg.MailDriver == "smtp" {
        return sendSMTP(cfg, ev)
    }
    return logMail(ev)
}

// sendSMTP delivers the message through the configured SMTP relay.
// smtp.SendMail upgrades to STARTTLS whenever the server offers it.
func sendSMTP(cfg config.Config, ev EmailEvent) error {
    addr := cfg.SMTPHost + ":" + cfg.SMTPPort
    var auth smtp.Auth
    if cfg.SMTPUser != "" {
        auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPHost)
    }
    msg := []byte("From: " + cfg.MailFrom + "\r\n" +
        "To: " + ev.To + "\r\n" +
        "Subject: " + ev.Subject + "\r\n" +
        "MIME-Version: 1.0\r\n" +
        "Content-Type: text/plain; charset=utf-8\r\n" +
        "\r\n" +
        ev.Body + "\r\n")
    if err := smtp.SendMail(addr, auth, cfg.MailFrom, []string{ev.To}, msg); err != nil {
        return fmt.Errorf("smtp send: %w", err)
    }
    return nil
}

// logMail is the dev-mode driver: it appends the message to
// logs/mail.log instead of sending anything.
func logMail(ev EmailEvent) error {
    if err := os.MkdirAll("logs", 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    fpath := filepath.Join("logs", "mail.log")
    f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    line := fmt.Sprintf("[%s] Mail queued for delivery | to=%q | subject=%q | body=%q\n",
        ev.QueuedAt, ev.To, ev.Subject, ev.Body)

    if _, err := f.WriteString(line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}
