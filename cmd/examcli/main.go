package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/bridge4er/examhall/internal/examclient"
	"github.com/bridge4er/examhall/internal/logger"
	"github.com/bridge4er/examhall/internal/session"
	"golang.org/x/term"
)

func main() {
	var (
		serverURL string
		setID     int64
		email     string
		logLevel  string
	)
	flag.StringVar(&serverURL, "server", "http://localhost:8080/api/v1", "Exam service base URL")
	flag.Int64Var(&setID, "set", 0, "Exam set ID to attempt")
	flag.StringVar(&email, "email", "", "Account email")
	flag.StringVar(&logLevel, "log-level", "error", "Log level")
	flag.Parse()

	if setID <= 0 || email == "" {
		fmt.Println("Usage: examcli -set <id> -email <email> [-server <url>]")
		os.Exit(1)
	}

	log := logger.Setup(logLevel, "pretty")
	ctx := context.Background()

	fmt.Print("Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Println("Error reading password")
		os.Exit(1)
	}

	token, err := examclient.Login(ctx, serverURL, email, string(bytePassword))
	if err != nil {
		fmt.Printf("Login failed: %v\n", err)
		os.Exit(1)
	}

	client := examclient.New(serverURL, token, log)
	sess := session.New(session.Config{
		Client: client,
		SetID:  setID,
		Logger: log,
	})
	defer sess.Close()

	if err := sess.Start(ctx); err != nil {
		fmt.Printf("Could not start the exam: %v\n", err)
		os.Exit(1)
	}

	exam := sess.Exam()
	fmt.Printf("\n=== %s ===\n", exam.Name)
	if exam.Instructions != "" {
		fmt.Println(exam.Instructions)
	}
	fmt.Printf("Questions: %d | Duration: %s | Grace: %ds | Negative marking: %g\n\n",
		len(exam.Questions), session.FormatClock(exam.DurationSeconds), exam.GraceSeconds, exam.NegativeMarking)
	fmt.Println("Commands: a-d answer | f flag | n next | p prev | g <num> goto | v palette | s submit | q quit")

	runLoop(sess)
}

func runLoop(sess *session.Session) {
	reader := bufio.NewReader(os.Stdin)
	confirmed := false

	for {
		select {
		case <-sess.Done():
			printResult(sess)
			return
		default:
		}

		printQuestion(sess)
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.Fields(strings.ToLower(strings.TrimSpace(line)))
		if len(cmd) == 0 {
			continue
		}

		// The countdown may have forced a submission while waiting for
		// input; any buffered command is stale then.
		select {
		case <-sess.Done():
			printResult(sess)
			return
		default:
		}

		q, ok := sess.CurrentQuestion()
		switch cmd[0] {
		case "a", "b", "c", "d":
			if ok {
				sess.SelectOption(q.ID, cmd[0])
			}
		case "f":
			if ok {
				sess.ToggleFlag(q.ID)
			}
		case "n":
			sess.Next()
		case "p":
			sess.Previous()
		case "g":
			if len(cmd) < 2 {
				fmt.Println("Usage: g <question number>")
				continue
			}
			num, err := strconv.Atoi(cmd[1])
			if err != nil {
				fmt.Println("Question number must be numeric")
				continue
			}
			sess.GoTo(num - 1)
		case "v":
			printPalette(sess)
		case "s":
			if !confirmed {
				fmt.Print("Submit now? This cannot be undone (y/N): ")
				answer, _ := reader.ReadString('\n')
				if strings.TrimSpace(strings.ToLower(answer)) != "y" {
					continue
				}
				confirmed = true
			}
			if !sess.RequestSubmit() {
				fmt.Println("Submission not possible right now:", sess.Notice())
				confirmed = false
				continue
			}
			select {
			case <-sess.Done():
				printResult(sess)
				return
			case <-waitNotice(sess):
				fmt.Println(sess.Notice())
				confirmed = false
			}
		case "q":
			fmt.Println("Leaving without submitting. Your attempt is discarded.")
			return
		default:
			fmt.Println("Unknown command:", cmd[0])
		}
	}
}

// waitNotice resolves when an in-flight submission fails and the
// session rolls back with a user-facing notice. It never resolves on
// success; the caller races it against Done.
func waitNotice(sess *session.Session) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for range ticker.C {
			switch sess.Phase() {
			case session.PhaseSubmitting:
				continue
			case session.PhaseCompleted:
				return
			default:
				close(ch)
				return
			}
		}
	}()
	return ch
}

func printQuestion(sess *session.Session) {
	q, ok := sess.CurrentQuestion()
	if !ok {
		return
	}
	snap := sess.Snapshot()

	clock := snap.Clock
	if snap.Overtime {
		clock += " (overtime)"
	}
	fmt.Printf("\n[Q%d/%d | %s | answered %d, flagged %d, skipped %d]\n",
		snap.CurrentIndex+1, len(sess.Exam().Questions), clock,
		snap.Counts.Answered, snap.Counts.Flagged, snap.Counts.Skipped)
	if q.Header != "" {
		fmt.Println(q.Header)
	}
	fmt.Println(q.Text)
	if q.ImageURL != "" {
		fmt.Println("Image:", q.ImageURL)
	}
	selected, _ := sess.Selected(q.ID)
	for _, opt := range q.Options {
		marker := " "
		if opt.Key == selected {
			marker = "*"
		}
		fmt.Printf("  %s (%s) %s\n", marker, opt.Key, opt.Text)
	}
	if snap.Notice != "" {
		fmt.Println("!", snap.Notice)
	}
}

func printPalette(sess *session.Session) {
	exam := sess.Exam()
	fmt.Println()
	for i, q := range exam.Questions {
		fmt.Printf("  %2d. %s\n", i+1, sess.Classify(q.ID))
	}
}

func printResult(sess *session.Session) {
	result, ok := sess.Result()
	if !ok {
		return
	}
	fmt.Println("\n=== Submitted ===")
	fmt.Printf("Score: %g | Correct: %d | Wrong: %d | Unanswered: %d (of %d)\n",
		result.Score, result.CorrectAnswers, result.WrongAnswers, result.Unanswered, result.TotalQuestions)

	if len(result.Leaderboard) > 0 {
		fmt.Println("\nLeaderboard:")
		for _, row := range result.Leaderboard {
			fmt.Printf("  %2d. %-24s %g\n", row.Rank, row.StudentName, row.Score)
		}
	}

	review := sess.Review()
	if len(review) > 0 {
		fmt.Println("\nReview:")
		for _, row := range review {
			verdict := "wrong"
			if row.IsCorrect {
				verdict = "correct"
			}
			if row.SelectedOption == "" {
				verdict = "unanswered"
			}
			fmt.Printf("- %s [%s]\n", row.QuestionText, verdict)
			if row.SelectedOption != "" {
				fmt.Printf("    your answer: (%s) %s\n", row.SelectedOption, row.SelectedText)
			}
			fmt.Printf("    correct:     (%s) %s\n", row.CorrectOption, row.CorrectText)
			if row.Explanation != "" {
				fmt.Printf("    %s\n", row.Explanation)
			}
		}
	}
}
