package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/neurosales/neuroseller-bot/internal/config"
	"github.com/neurosales/neuroseller-bot/internal/dialog"
	"github.com/neurosales/neuroseller-bot/internal/domain/onboarding"
	"github.com/neurosales/neuroseller-bot/internal/domain/tariffs"
	"github.com/neurosales/neuroseller-bot/internal/domain/users"
	"github.com/neurosales/neuroseller-bot/internal/recommend"
)

// StartButtonText — кнопка, запускающая онбординг из приветствия.
const StartButtonText = "Начать тест"

type UserStore interface {
	Upsert(ctx context.Context, tg users.Telegram, trialEnd time.Time) (*users.User, error)
	SetTariff(ctx context.Context, userID int64, tariffID int64) error
}

type AnswerStore interface {
	Append(ctx context.Context, userID int64, questionID int, text string) error
	ListLatest(ctx context.Context, userID int64) ([]onboarding.Answer, error)
}

type TariffStore interface {
	GetOrCreate(ctx context.Context, name, description string, price float64) (*tariffs.Tariff, error)
}

type StateStore interface {
	Get(ctx context.Context, chatID int64) (*dialog.Item, error)
	Set(ctx context.Context, chatID int64, state dialog.State, payload dialog.Payload) error
	Reset(ctx context.Context, chatID int64) error
}

type Recommender interface {
	Recommend(ctx context.Context, answers []recommend.AnswerPair) (*recommend.Proposal, error)
}

// Machine ведёт пользователя по шагам онбординга. Переходы одного чата
// строго последовательны (per-chat мьютекс); разные чаты независимы.
// Сбой записи в хранилище отменяет переход: шаг не двигается, ошибка
// уходит вызывающему.
type Machine struct {
	log         *slog.Logger
	users       UserStore
	answers     AnswerStore
	tariffs     TariffStore
	states      StateStore
	rec         Recommender
	questions   []config.Question
	trialPeriod time.Duration

	// progress вызывается перед долгим обращением к подбору тарифа,
	// чтобы пользователь не смотрел в пустоту. Может быть nil.
	progress func(chatID int64, text string)

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewMachine(
	log *slog.Logger,
	userStore UserStore,
	answerStore AnswerStore,
	tariffStore TariffStore,
	stateStore StateStore,
	rec Recommender,
	questions []config.Question,
	trialPeriod time.Duration,
	progress func(chatID int64, text string),
) *Machine {
	return &Machine{
		log:         log,
		users:       userStore,
		answers:     answerStore,
		tariffs:     tariffStore,
		states:      stateStore,
		rec:         rec,
		questions:   questions,
		trialPeriod: trialPeriod,
		progress:    progress,
		locks:       map[int64]*sync.Mutex{},
	}
}

func (m *Machine) chatLock(chatID int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[chatID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[chatID] = l
	}
	return l
}

// Handle применяет событие к текущему шагу диалога. expired — аннотация
// гейта: триал кончился и тариф не выбран; сам онбординг при этом
// остаётся доступен, выбор тарифа — единственный выход из этого статуса.
func (m *Machine) Handle(ctx context.Context, tg users.Telegram, ev Event, expired bool) (Outcome, error) {
	l := m.chatLock(tg.ChatID)
	l.Lock()
	defer l.Unlock()

	switch ev.(type) {
	case ContactHuman:
		// Выход к менеджеру доступен с любого шага.
		if err := m.states.Reset(ctx, tg.ChatID); err != nil {
			return Outcome{}, fmt.Errorf("reset state: %w", err)
		}
		return Outcome{Kind: OutcomeEscalated}, nil
	case StartAction:
		return m.start(ctx, tg)
	}

	st, err := m.states.Get(ctx, tg.ChatID)
	if err != nil {
		return Outcome{}, fmt.Errorf("get state: %w", err)
	}

	switch st.State {
	case dialog.StateIdle:
		if expired {
			return Outcome{Kind: OutcomeExpired}, nil
		}
		return m.reject(st, "idle", ev)

	case dialog.StateAwaitStart:
		if txt, ok := ev.(FreeTextAnswer); ok && txt.Text == StartButtonText {
			return m.askQuestion(ctx, st.ChatID, 0)
		}
		return m.reject(st, "await_start", ev)

	case dialog.StateQuestion:
		if txt, ok := ev.(FreeTextAnswer); ok {
			return m.acceptAnswer(ctx, tg, st, txt.Text)
		}
		return m.reject(st, "question", ev)

	case dialog.StateTariffSelect, dialog.StateTariffDetails:
		return m.handleSelection(ctx, tg, st, ev)
	}

	return m.reject(st, string(st.State), ev)
}

// start всегда перезапускает диалог с нуля. Upsert не сдвигает окно
// триала существующего пользователя — это гарантия репозитория.
func (m *Machine) start(ctx context.Context, tg users.Telegram) (Outcome, error) {
	if _, err := m.users.Upsert(ctx, tg, time.Now().Add(m.trialPeriod)); err != nil {
		return Outcome{}, fmt.Errorf("upsert user: %w", err)
	}
	if err := m.states.Set(ctx, tg.ChatID, dialog.StateAwaitStart, dialog.Payload{}); err != nil {
		return Outcome{}, fmt.Errorf("set state: %w", err)
	}
	return Outcome{Kind: OutcomeWelcome}, nil
}

func (m *Machine) askQuestion(ctx context.Context, chatID int64, idx int) (Outcome, error) {
	if err := m.states.Set(ctx, chatID, dialog.StateQuestion, dialog.Payload{"q": idx}); err != nil {
		return Outcome{}, fmt.Errorf("set state: %w", err)
	}
	return Outcome{Kind: OutcomeQuestion, Question: &m.questions[idx], Index: idx}, nil
}

// acceptAnswer записывает ответ и двигает шаг; после последнего вопроса
// синхронно зовёт подбор тарифа.
func (m *Machine) acceptAnswer(ctx context.Context, tg users.Telegram, st *dialog.Item, text string) (Outcome, error) {
	idx, ok := dialog.GetInt(st.Payload, "q")
	if !ok || idx < 0 || idx >= len(m.questions) {
		// повреждённый шаг — начинать заново безопасно
		m.log.Warn("повреждённый номер вопроса в диалоге", "chat_id", st.ChatID)
		return m.reject(st, "question", FreeTextAnswer{})
	}

	q := m.questions[idx]
	if err := m.answers.Append(ctx, tg.ID, q.ID, text); err != nil {
		return Outcome{}, fmt.Errorf("append answer: %w", err)
	}

	if idx+1 < len(m.questions) {
		return m.askQuestion(ctx, st.ChatID, idx+1)
	}
	return m.recommendTariffs(ctx, tg)
}

func (m *Machine) recommendTariffs(ctx context.Context, tg users.Telegram) (Outcome, error) {
	if m.progress != nil {
		m.progress(tg.ChatID, "Спасибо за ваши ответы! Анализирую информацию и подбираю оптимальный тариф...")
	}

	saved, err := m.answers.ListLatest(ctx, tg.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("list answers: %w", err)
	}
	questionText := make(map[int]string, len(m.questions))
	for _, q := range m.questions {
		questionText[q.ID] = q.Text
	}
	pairs := make([]recommend.AnswerPair, 0, len(saved))
	for _, a := range saved {
		pairs = append(pairs, recommend.AnswerPair{Question: questionText[a.QuestionID], Answer: a.Text})
	}

	proposal, err := m.rec.Recommend(ctx, pairs)
	if err != nil {
		// терминальный «не подобрали», не падение: диалог закрывается,
		// пользователя отправляем к менеджеру
		m.log.Error("подбор тарифа не удался", "user_id", tg.ID, "err", err)
		if rerr := m.states.Reset(ctx, tg.ChatID); rerr != nil {
			m.log.Error("не удалось сбросить диалог", "chat_id", tg.ChatID, "err", rerr)
		}
		return Outcome{Kind: OutcomeUnresolved}, nil
	}

	if err := m.states.Set(ctx, tg.ChatID, dialog.StateTariffSelect, dialog.Payload{"proposal": proposal}); err != nil {
		return Outcome{}, fmt.Errorf("set state: %w", err)
	}
	return Outcome{Kind: OutcomeProposal, Proposal: proposal}, nil
}

func (m *Machine) handleSelection(ctx context.Context, tg users.Telegram, st *dialog.Item, ev Event) (Outcome, error) {
	proposal, ok := proposalFromPayload(st.Payload)
	if !ok {
		m.log.Warn("предложение тарифов потеряно из диалога", "chat_id", st.ChatID)
		return m.reject(st, string(st.State), ev)
	}

	switch e := ev.(type) {
	case SelectTariff:
		if e.Index < 0 || e.Index >= len(proposal.Tariffs) {
			return m.rejectWithProposal(st, proposal, ev)
		}
		return m.commitTariff(ctx, tg, st, proposal.Tariffs[e.Index])

	case ViewTariffDetails:
		if e.Index < 0 || e.Index >= len(proposal.Tariffs) {
			return m.rejectWithProposal(st, proposal, ev)
		}
		// просмотр read-only, подбор заново не вызывается
		if err := m.states.Set(ctx, st.ChatID, dialog.StateTariffDetails, st.Payload); err != nil {
			return Outcome{}, fmt.Errorf("set state: %w", err)
		}
		return Outcome{Kind: OutcomeDetails, Proposal: proposal, Index: e.Index}, nil

	case BackToList:
		if st.State != dialog.StateTariffDetails {
			return m.rejectWithProposal(st, proposal, ev)
		}
		if err := m.states.Set(ctx, st.ChatID, dialog.StateTariffSelect, st.Payload); err != nil {
			return Outcome{}, fmt.Errorf("set state: %w", err)
		}
		return Outcome{Kind: OutcomeProposal, Proposal: proposal}, nil
	}

	return m.rejectWithProposal(st, proposal, ev)
}

// commitTariff — единственная внешняя запись выбора: тариф в каталог,
// id в запись пользователя, диалог закрыт.
func (m *Machine) commitTariff(ctx context.Context, tg users.Telegram, st *dialog.Item, t recommend.Tariff) (Outcome, error) {
	chosen, err := m.tariffs.GetOrCreate(ctx, t.Name, t.Description, t.Price)
	if err != nil {
		return Outcome{}, fmt.Errorf("resolve tariff %q: %w", t.Name, err)
	}
	if err := m.users.SetTariff(ctx, tg.ID, chosen.ID); err != nil {
		return Outcome{}, fmt.Errorf("set tariff: %w", err)
	}
	if err := m.states.Reset(ctx, st.ChatID); err != nil {
		return Outcome{}, fmt.Errorf("reset state: %w", err)
	}
	m.log.Info("тариф выбран", "user_id", tg.ID, "tariff", chosen.Name)
	return Outcome{Kind: OutcomeCommitted, Tariff: &CommittedTariff{ID: chosen.ID, Name: chosen.Name, Price: chosen.Price}}, nil
}

// reject — событие не подошло шагу: логируем, состояние не трогаем,
// наружу уходит повтор текущего шага.
func (m *Machine) reject(st *dialog.Item, step string, ev Event) (Outcome, error) {
	m.log.Debug("событие отклонено шагом диалога", "chat_id", st.ChatID, "step", step, "event", fmt.Sprintf("%T", ev))
	out := Outcome{Kind: OutcomeRejected}
	if st.State == dialog.StateQuestion {
		if idx, ok := dialog.GetInt(st.Payload, "q"); ok && idx >= 0 && idx < len(m.questions) {
			out.Question = &m.questions[idx]
			out.Index = idx
		}
	}
	return out, nil
}

func (m *Machine) rejectWithProposal(st *dialog.Item, p *recommend.Proposal, ev Event) (Outcome, error) {
	out, _ := m.reject(st, string(st.State), ev)
	out.Proposal = p
	return out, nil
}

// proposalFromPayload восстанавливает предложение после JSON-раунда
// в dialog_states (map[string]any -> структура).
func proposalFromPayload(p dialog.Payload) (*recommend.Proposal, bool) {
	raw, ok := p["proposal"]
	if !ok {
		return nil, false
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, false
	}
	var pr recommend.Proposal
	if err := json.Unmarshal(b, &pr); err != nil {
		return nil, false
	}
	if len(pr.Tariffs) == 0 {
		return nil, false
	}
	return &pr, true
}
